package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/CipherInGo/pkg/interceptor"
	"github.com/ecstasoy/CipherInGo/pkg/pool"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

func TestServiceEncrypt(t *testing.T) {
	svc := NewService()
	req := protocol.NewPacket(protocol.OpEncrypt, "abcd", []byte("Hello"))
	req.Seal()

	resp, err := svc.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []byte("hfnoo"), resp.Payload)
	assert.Equal(t, uint64(protocol.HeaderLength+5), resp.Length)
	assert.NoError(t, protocol.Verify(resp))
	assert.Equal(t, ServiceStats{Handled: 1}, svc.Stats())
}

func TestServiceDecrypt(t *testing.T) {
	req := protocol.NewPacket(protocol.OpDecrypt, "abcd", []byte("hfnoo"))
	req.Seal()

	resp, err := NewService().Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), resp.Payload)
}

func TestServiceRejectsChecksumMismatch(t *testing.T) {
	svc := NewService()
	req := protocol.NewPacket(protocol.OpEncrypt, "abcd", []byte("Hello"))
	req.Seal()
	req.Payload[0] = 'J'

	resp, err := svc.Handle(context.Background(), req)
	assert.Nil(t, resp)
	require.ErrorIs(t, err, protocol.ErrChecksumMismatch)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageVerifying, stageErr.Stage)
	// payload untouched
	assert.Equal(t, []byte("Jello"), req.Payload)
	assert.Equal(t, ServiceStats{Rejected: 1}, svc.Stats())
}

func TestServiceRejectsUnknownOperation(t *testing.T) {
	req := protocol.NewPacket(protocol.Operation(2), "abcd", []byte("Hello"))
	req.Seal()

	_, err := NewService().Handle(context.Background(), req)
	assert.ErrorIs(t, err, protocol.ErrUnknownOperation)
	assert.Equal(t, []byte("Hello"), req.Payload)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "verifying", StageVerifying.String())
	assert.Equal(t, "closed", StageClosed.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ClassSuccess},
		{interceptor.ErrRateLimited, ClassRate},
		{fmt.Errorf("accept: %w", pool.ErrPoolFull), ClassCapacity},
		{&StageError{Stage: StageVerifying, Err: protocol.ErrChecksumMismatch}, ClassProtocol},
		{fmt.Errorf("read request failed: %w", protocol.ErrMalformedLength), ClassProtocol},
		{&protocol.TransportError{Op: "read header", Err: io.EOF}, ClassTransport},
		{context.Canceled, ClassCanceled},
		{fmt.Errorf("%w: boom", interceptor.ErrPanic), ClassInternal},
		{errors.New("something else"), ClassInternal},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}
