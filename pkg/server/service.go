// Kunhua Huang 2026

package server

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ecstasoy/CipherInGo/pkg/cipher"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

// Stage names a step of a single transaction. A packet moves through
// Verifying, then Encrypting or Decrypting, then Sealing. Any failure ends
// in Rejected and the connection is closed without a reply.
type Stage int

const (
	StageReceiving Stage = iota
	StageVerifying
	StageEncrypting
	StageDecrypting
	StageSealing
	StageSending
	StageRejected
	StageClosed
)

var stageNames = [...]string{"receiving", "verifying", "encrypting", "decrypting", "sealing", "sending", "rejected", "closed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports which stage a transaction failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Service is the packet handler: it verifies the checksum, applies the
// cipher selected by the operation in place and reseals the packet, which
// then becomes the reply.
type Service struct {
	handled  int64
	rejected int64
}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Handle(_ context.Context, req *protocol.Packet) (*protocol.Packet, error) {
	if err := protocol.Verify(req); err != nil {
		return nil, s.reject(StageVerifying, err)
	}

	if !req.Operation.Valid() {
		return nil, s.reject(StageVerifying, fmt.Errorf("%w: %s", protocol.ErrUnknownOperation, req.Operation))
	}

	stage := StageEncrypting
	if req.Operation == protocol.OpDecrypt {
		stage = StageDecrypting
	}

	// transforms in place and reseals
	if err := cipher.ApplyPacket(req); err != nil {
		return nil, s.reject(stage, err)
	}

	atomic.AddInt64(&s.handled, 1)
	return req, nil
}

func (s *Service) reject(stage Stage, err error) error {
	atomic.AddInt64(&s.rejected, 1)
	return &StageError{Stage: stage, Err: err}
}

type ServiceStats struct {
	Handled  int64
	Rejected int64
}

func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Handled:  atomic.LoadInt64(&s.handled),
		Rejected: atomic.LoadInt64(&s.rejected),
	}
}
