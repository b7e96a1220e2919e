package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	DefaultIdleTimeout = 30 * time.Second
	defaultChunkSize   = 4096
)

var ErrIdleTimeout = errors.New("stream: no data received before idle timeout")

// Options tunes Read. The zero value uses DefaultIdleTimeout; a negative
// IdleTimeout disables the timer.
type Options struct {
	IdleTimeout time.Duration
	ChunkSize   int
}

type readResult struct {
	data []byte
	err  error
}

// Read consumes r chunk by chunk, calling onSnapshot with the full message
// text each time a delta is appended, and returns the final content. It stops
// at [DONE], at end of input, on a read error, when ctx is cancelled or when
// no chunk arrives within the idle timeout. If r is an io.Closer it is closed
// before Read returns.
func Read(ctx context.Context, r io.Reader, opts Options, onSnapshot func(string)) (string, error) {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	idle := opts.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	emit := func(snapshots []string) {
		if onSnapshot == nil {
			return
		}
		for _, s := range snapshots {
			onSnapshot(s)
		}
	}

	chunks := make(chan readResult)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			buf := make([]byte, size)
			n, err := r.Read(buf)
			select {
			case chunks <- readResult{data: buf[:n], err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var timeout <-chan time.Time
	var timer *time.Timer
	if idle > 0 {
		timer = time.NewTimer(idle)
		defer timer.Stop()
		timeout = timer.C
	}

	asm := NewAssembler()
	for {
		select {
		case <-ctx.Done():
			return asm.Content(), ctx.Err()

		case <-timeout:
			return asm.Content(), ErrIdleTimeout

		case res := <-chunks:
			if len(res.data) > 0 {
				snapshots, done := asm.Feed(res.data)
				emit(snapshots)
				if done {
					return asm.Content(), nil
				}
			}

			if errors.Is(res.err, io.EOF) {
				emit(asm.Finish())
				return asm.Content(), nil
			}
			if res.err != nil {
				return asm.Content(), fmt.Errorf("stream: read body: %w", res.err)
			}

			if timer != nil {
				timer.Reset(idle)
			}
		}
	}
}
