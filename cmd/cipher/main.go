package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecstasoy/CipherInGo/pkg/cipher"
	"github.com/ecstasoy/CipherInGo/pkg/client"
	"github.com/ecstasoy/CipherInGo/pkg/config"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cipher -h host -p port -o op -k keyword",
		Short: "Send stdin to a cipherd server and print the result",
		Long: `cipher reads all of stdin, sends it to the server as one packet and
writes the transformed payload to stdout. The operation is 0 (encrypt) or
1 (decrypt); the names encrypt and decrypt are accepted as well.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	// -h is the host, so help is long-form only
	f.Bool("help", false, "help for cipher")
	f.StringP("host", "h", "", "Server host")
	f.IntP("port", "p", 0, "Server port")
	f.StringP("op", "o", "", "Operation: 0/encrypt or 1/decrypt")
	f.StringP("keyword", "k", "", "Four-letter keyword")
	f.StringP("config", "c", "", "YAML configuration file (client section)")
	f.Duration("timeout", 30*time.Second, "Overall time limit for the request")

	return cmd
}

// parseOperation accepts the numeric codes and their names. Unknown numeric
// codes are passed through for the server to reject.
func parseOperation(s string) (protocol.Operation, error) {
	switch strings.ToLower(s) {
	case "encrypt", "enc", "e":
		return protocol.OpEncrypt, nil
	case "decrypt", "dec", "d":
		return protocol.OpDecrypt, nil
	}

	n, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid operation %q", s)
	}
	return protocol.Operation(n), nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if f.Changed("host") {
		cfg.Client.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Client.Port, _ = f.GetInt("port")
	}

	if cfg.Client.Host == "" || cfg.Client.Port == 0 {
		return nil, errors.New("host and port are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opFlag, _ := cmd.Flags().GetString("op")
	op, err := parseOperation(opFlag)
	if err != nil {
		return err
	}

	keyword, _ := cmd.Flags().GetString("keyword")
	if !cipher.ValidKeyword(keyword) {
		return fmt.Errorf("keyword must be four letters, got %q", keyword)
	}

	payload, err := readPayload(cmd.InOrStdin(), cfg.Client.MaxPayloadSize)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := client.NewClient(cfg.Client.Addr(), client.FromConfig(cfg.Client)...)
	out, err := c.Do(ctx, op, keyword, payload)
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func readPayload(r io.Reader, max uint64) ([]byte, error) {
	if max == 0 || max > protocol.PayloadSizeLimit {
		max = protocol.PayloadSizeLimit
	}
	payload, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if uint64(len(payload)) > max {
		return nil, fmt.Errorf("%w: input exceeds %d bytes", protocol.ErrPayloadTooLarge, max)
	}
	return payload, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cipher:", err)
		os.Exit(1)
	}
}
