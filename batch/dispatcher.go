package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/squidi0n/fluxao-sub000/backoff"
)

// Queue is the external destination for encoded chunks.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// QueueFunc adapts a function to the Queue interface.
type QueueFunc func(ctx context.Context, payload []byte) error

// Enqueue implements Queue.
func (f QueueFunc) Enqueue(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// ChunkResult records the outcome of one chunk hand-off.
type ChunkResult struct {
	Index int   `json:"index"`
	Size  int   `json:"size"`
	Err   error `json:"-"`
}

// Results aggregates the outcome of one Dispatch call.
type Results struct {
	Chunks   []ChunkResult `json:"chunks"`
	Enqueued int           `json:"enqueued"`
	Failed   int           `json:"failed"`
}

// Dispatcher chunks items and hands them to a Queue at a controlled
// pace.
type Dispatcher struct {
	queue     Queue
	codec     Codec
	chunkSize int
	pace      backoff.Strategy
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCodec sets the payload codec. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(d *Dispatcher) { d.codec = c }
}

// WithChunkSize sets how many items travel per payload. Defaults to 50.
func WithChunkSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithPace sets the pause strategy applied between chunks. Defaults to
// a constant one second.
func WithPace(s backoff.Strategy) Option {
	return func(d *Dispatcher) { d.pace = s }
}

// WithRateLimit additionally caps sustained chunk throughput with a
// token bucket.
func WithRateLimit(l *rate.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher writing to queue.
func NewDispatcher(queue Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     queue,
		chunkSize: 50,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.codec == nil {
		d.codec = &JSONCodec{}
	}
	if d.pace == nil {
		d.pace = backoff.DefaultStrategy()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch encodes and enqueues items in fixed-size chunks with a
// pause between consecutive chunks. A failing chunk is recorded in the
// Results and the remaining chunks still go out. The error return is
// reserved for context cancellation; per-chunk failures never abort
// the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item) (*Results, error) {
	res := &Results{}
	if len(items) == 0 {
		return res, nil
	}

	total := (len(items) + d.chunkSize - 1) / d.chunkSize
	for i := 0; i < len(items); i += d.chunkSize {
		end := min(i+d.chunkSize, len(items))
		chunk := items[i:end]
		idx := i / d.chunkSize

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return res, err
			}
		}

		err := d.enqueueChunk(ctx, chunk)
		res.Chunks = append(res.Chunks, ChunkResult{Index: idx, Size: len(chunk), Err: err})
		if err != nil {
			res.Failed += len(chunk)
			d.logger.Error("chunk enqueue failed",
				slog.Int("chunk", idx),
				slog.Int("size", len(chunk)),
				slog.Any("error", err))
		} else {
			res.Enqueued += len(chunk)
			d.logger.Debug("chunk enqueued",
				slog.Int("chunk", idx),
				slog.Int("size", len(chunk)),
				slog.Int("of", total))
		}

		// Pause between chunks, not after the last one.
		if end < len(items) {
			if err := sleepCtx(ctx, d.pace.Delay(idx+1)); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (d *Dispatcher) enqueueChunk(ctx context.Context, chunk []Item) error {
	payload, err := d.codec.Encode(chunk)
	if err != nil {
		return fmt.Errorf("encode chunk: %w", err)
	}
	if err := d.queue.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("enqueue chunk: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
