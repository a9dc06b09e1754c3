package transport

import (
	"context"
	"testing"
	"time"

	"github.com/flowrelay/marketdata/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTransportNonBlockingSend(t *testing.T) {
	lt := NewLocalTransport(1, 64)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, lt.Send(ctx, []byte("a")))
	assert.Equal(t, int64(1), lt.metrics.SendCount.Load())
	assert.Equal(t, int64(64), lt.metrics.SerializationBytesSaved.Load())
}

func TestLocalTransportTimeoutOnFullChannel(t *testing.T) {
	lt := NewLocalTransport(1, 64)
	ctx := context.Background()
	require.NoError(t, lt.Send(ctx, []byte("a")))

	shortCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := lt.Send(shortCtx, []byte("b"))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLocalTransportClosedReturnsError(t *testing.T) {
	lt := NewLocalTransport(1, 64)
	lt.Close()
	err := lt.Send(context.Background(), []byte("a"))
	assert.ErrorIs(t, err, ErrNetworkClosed)
}

func TestUnixSocketTransportRefusesWhenUnhealthy(t *testing.T) {
	ut := NewUnixSocketTransport(func(ctx context.Context, p []byte) error { return nil }, func() bool { return false })
	err := ut.Send(context.Background(), []byte("a"))
	assert.ErrorIs(t, err, ErrUnhealthy)
}

func TestBoundaryValidatorDropsInvalidMessage(t *testing.T) {
	v := NewBoundaryValidator(codec.DefaultLimits)
	_, err := v.Validate([]byte{0, 0, 0, 0})
	assert.Error(t, err)
	assert.Equal(t, int64(1), v.Dropped())
}

func TestBoundaryValidatorAcceptsValidMessage(t *testing.T) {
	v := NewBoundaryValidator(codec.DefaultLimits)
	msg, err := codec.Build(codec.DomainSignal, 1, 1, uint64(time.Now().UnixNano()), []codec.TLV{{Type: 20, Payload: []byte{1}}})
	require.NoError(t, err)

	_, err = v.Validate(msg)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), v.Dropped())
}
