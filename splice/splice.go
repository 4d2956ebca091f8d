// Package splice implements the relay splicer (component F): a
// bidirectional byte pipe between two duplex streams, bounded by a shared
// data budget and a wall-clock duration budget.
package splice

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	pool "github.com/libp2p/go-buffer-pool"
)

const bufferSize = 32 * 1024

// Stream is the narrow duplex surface the splicer needs from each side of
// the relay -- satisfied directly by a real network.Stream.
type Stream interface {
	io.Reader
	io.Writer
	CloseWrite() error
	Reset() error
}

// Limit bounds one relayed connection. Zero on either field disables that
// axis' cap.
type Limit struct {
	Data     uint64
	Duration time.Duration
}

// Stats reports what one Splice call moved in total, across both
// directions.
type Stats struct {
	Transferred int64
}

// OnBytes, if non-nil, is invoked after each successful chunk write with
// the chunk size, letting a metrics tracer observe throughput without the
// splicer depending on any particular metrics library.
type Options struct {
	OnBytes func(n int)
}

// Splice copies a<->b concurrently until both directions have reached EOF,
// the shared data budget is exhausted, or the duration budget fires. It
// blocks until both forwarding goroutines have returned.
func Splice(a, b Stream, limit Limit, opts Options) Stats {
	var transferred atomic.Int64
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			a.Reset()
			b.Reset()
		})
	}

	if limit.Duration > 0 {
		timer := time.AfterFunc(limit.Duration, closeBoth)
		defer timer.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go forward(a, b, limit.Data, &transferred, closeBoth, opts.OnBytes, &wg)
	go forward(b, a, limit.Data, &transferred, closeBoth, opts.OnBytes, &wg)
	wg.Wait()

	return Stats{Transferred: transferred.Load()}
}

// forward copies from src to dst until src's EOF, a write error, or the
// shared counter reaches limit (0 = unbounded). A chunk that would carry the
// counter past limit is not forwarded. On a clean EOF it only closes dst's
// write half, letting the opposite direction keep draining; on any error,
// or on reaching the data limit, it resets both sides.
func forward(src Stream, dst Stream, limit uint64, counter *atomic.Int64, onLimit func(), onBytes func(int), wg *sync.WaitGroup) {
	defer wg.Done()

	buf := pool.Get(bufferSize)
	defer pool.Put(buf)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			total := counter.Add(int64(n))
			if limit > 0 && total >= 0 && uint64(total) > limit {
				counter.Add(-int64(n))
				onLimit()
				return
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				counter.Add(-int64(n))
				src.Reset()
				dst.Reset()
				return
			}
			if onBytes != nil {
				onBytes(n)
			}
			if limit > 0 && total >= 0 && uint64(total) >= limit {
				onLimit()
				return
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				src.Reset()
				dst.Reset()
			} else {
				dst.CloseWrite()
			}
			return
		}
	}
}
