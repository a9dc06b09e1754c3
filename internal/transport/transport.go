// Package transport implements the transport abstraction (C9): local
// in-process delivery, a Unix-domain-socket path, and an abstract
// network sender, each tracked by the same metrics and re-validated at
// the boundary via the Protocol V2 validator.
package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	ErrNetworkClosed = errors.New("transport: network closed")
	ErrChannelClosed = errors.New("transport: channel closed")
	ErrTimeout       = errors.New("transport: timeout")
	ErrUnhealthy     = errors.New("transport: remote endpoint unhealthy")
)

// Mode selects which of the three transport strategies a Transport uses.
type Mode int

const (
	ModeLocal Mode = iota
	ModeUnixSocket
	ModeNetwork
)

// Metrics accumulates per-transport counters, per spec §4.9.
type Metrics struct {
	SendCount               atomic.Int64
	SendFailures            atomic.Int64
	TotalLatencyNs          atomic.Int64
	SerializationBytesSaved atomic.Int64
}

// Sender is the minimal interface every mode implements: send framed
// bytes (already produced by internal/codec for remote modes) and a
// liveness check.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	IsHealthy() bool
	Mode() Mode
}

// LocalTransport passes the payload slice through a bounded channel, the
// one mode that never serializes or copies the bytes.
// recordSize is whatever size_of::<T>() would be in the original —
// here, the caller-supplied nominal payload size used only for the
// "serialization bytes eliminated" metric.
type LocalTransport struct {
	ch         chan []byte
	metrics    *Metrics
	recordSize int64
	closed     atomic.Bool
}

func NewLocalTransport(bufferSize int, recordSize int64) *LocalTransport {
	return &LocalTransport{
		ch:         make(chan []byte, bufferSize),
		metrics:    &Metrics{},
		recordSize: recordSize,
	}
}

func (l *LocalTransport) Mode() Mode { return ModeLocal }

func (l *LocalTransport) IsHealthy() bool { return !l.closed.Load() }

// Send tries a non-blocking enqueue first; on a full channel it falls
// back to an awaited send (logging is the caller's job via the returned
// bool wrapped as an error-free slow path is not observable here, so
// callers should check channel depth themselves if they want the
// warning); on a closed channel it returns ErrNetworkClosed.
func (l *LocalTransport) Send(ctx context.Context, payload []byte) error {
	if l.closed.Load() {
		return ErrNetworkClosed
	}
	start := time.Now()
	defer func() {
		l.metrics.TotalLatencyNs.Add(time.Since(start).Nanoseconds())
	}()

	select {
	case l.ch <- payload:
		l.metrics.SendCount.Add(1)
		l.metrics.SerializationBytesSaved.Add(l.recordSize)
		return nil
	default:
	}

	select {
	case l.ch <- payload:
		l.metrics.SendCount.Add(1)
		l.metrics.SerializationBytesSaved.Add(l.recordSize)
		return nil
	case <-ctx.Done():
		l.metrics.SendFailures.Add(1)
		return ErrTimeout
	}
}

func (l *LocalTransport) Receive() <-chan []byte { return l.ch }

func (l *LocalTransport) Close() {
	if l.closed.CompareAndSwap(false, true) {
		close(l.ch)
	}
}

// UnixSocketTransport and NetworkTransport both carry framed bytes
// produced by internal/codec.Build and require an explicit liveness
// predicate before sending, per spec §4.9.
type UnixSocketTransport struct {
	send        func(ctx context.Context, payload []byte) error
	isConnected func() bool
	metrics     *Metrics
}

func NewUnixSocketTransport(send func(ctx context.Context, payload []byte) error, isConnected func() bool) *UnixSocketTransport {
	return &UnixSocketTransport{send: send, isConnected: isConnected, metrics: &Metrics{}}
}

func (u *UnixSocketTransport) Mode() Mode     { return ModeUnixSocket }
func (u *UnixSocketTransport) IsHealthy() bool { return u.isConnected() }

func (u *UnixSocketTransport) Send(ctx context.Context, payload []byte) error {
	if !u.isConnected() {
		return ErrUnhealthy
	}
	start := time.Now()
	err := u.send(ctx, payload)
	u.metrics.TotalLatencyNs.Add(time.Since(start).Nanoseconds())
	if err != nil {
		u.metrics.SendFailures.Add(1)
		return err
	}
	u.metrics.SendCount.Add(1)
	return nil
}

type NetworkTransport struct {
	send      func(ctx context.Context, payload []byte) error
	isHealthy func() bool
	metrics   *Metrics
}

func NewNetworkTransport(send func(ctx context.Context, payload []byte) error, isHealthy func() bool) *NetworkTransport {
	return &NetworkTransport{send: send, isHealthy: isHealthy, metrics: &Metrics{}}
}

func (n *NetworkTransport) Mode() Mode      { return ModeNetwork }
func (n *NetworkTransport) IsHealthy() bool { return n.isHealthy() }

func (n *NetworkTransport) Send(ctx context.Context, payload []byte) error {
	if !n.isHealthy() {
		return ErrUnhealthy
	}
	start := time.Now()
	err := n.send(ctx, payload)
	n.metrics.TotalLatencyNs.Add(time.Since(start).Nanoseconds())
	if err != nil {
		n.metrics.SendFailures.Add(1)
		return err
	}
	n.metrics.SendCount.Add(1)
	return nil
}
