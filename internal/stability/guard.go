// Package stability runs fragile operations, mostly calls into PDF
// libraries, under a timeout with panic recovery.
package stability

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultMaxPanics = 50

var (
	ErrTimeout = errors.New("operation timed out")
	ErrPanic   = errors.New("operation panicked")
)

// PanicRecord stores a recovered panic.
type PanicRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"`
	Message    string    `json:"message"`
	StackTrace string    `json:"stack_trace"`
}

// Guard recovers panics and enforces timeouts, keeping the most recent panics
// for diagnostics. It is safe for concurrent use.
type Guard struct {
	logger    logrus.FieldLogger
	maxPanics int

	mu     sync.Mutex
	panics []PanicRecord
}

// NewGuard creates a guard logging through logger.
func NewGuard(logger logrus.FieldLogger) *Guard {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Guard{logger: logger, maxPanics: defaultMaxPanics}
}

// Run calls fn with a context limited to timeout. A panic in fn becomes an
// error wrapping ErrPanic; running out of time returns an error wrapping
// ErrTimeout while fn is left to observe its cancelled context. A timeout of
// zero means no limit beyond ctx.
func Run[T any](ctx context.Context, g *Guard, op string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.record(op, r, debug.Stack())
				done <- outcome{err: fmt.Errorf("%w in %s: %v", ErrPanic, op, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return res.val, timeoutError(op, timeout)
		}
		return res.val, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, timeoutError(op, timeout)
		}
		return zero, ctx.Err()
	}
}

func timeoutError(op string, timeout time.Duration) error {
	return fmt.Errorf("%w: %s after %v", ErrTimeout, op, timeout)
}

// Do is Run for operations without a result.
func Do(ctx context.Context, g *Guard, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, g, op, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (g *Guard) record(op string, r any, stack []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.panics = append(g.panics, PanicRecord{
		Timestamp:  time.Now(),
		Operation:  op,
		Message:    fmt.Sprint(r),
		StackTrace: string(stack),
	})
	if len(g.panics) > g.maxPanics {
		g.panics = g.panics[len(g.panics)-g.maxPanics:]
	}

	g.logger.WithFields(logrus.Fields{
		"operation": op,
		"panic":     fmt.Sprint(r),
	}).Warn("recovered panic")
}

// Panics returns a copy of the recent panic records.
func (g *Guard) Panics() []PanicRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PanicRecord, len(g.panics))
	copy(out, g.panics)
	return out
}

// PanicCount returns the number of retained panic records.
func (g *Guard) PanicCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.panics)
}

// SetMemoryLimit sets the Go runtime soft memory limit. Non-positive values
// leave it unchanged.
func (g *Guard) SetMemoryLimit(limitMB int) {
	if limitMB <= 0 {
		return
	}
	debug.SetMemoryLimit(int64(limitMB) * 1024 * 1024)
	g.logger.WithField("limit_mb", limitMB).Info("memory limit set")
}
