package worker

import (
	"context"
	"fmt"
)

// Batches splits items into consecutive chunks of at most size elements.
// A non-positive size yields a single chunk.
func Batches[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// BatchFunc processes one chunk and returns exactly one output per input
type BatchFunc[T, R any] func(ctx context.Context, batch []T) ([]R, error)

type batchJob[T, R any] struct {
	items []T
	fn    BatchFunc[T, R]
}

func (j *batchJob[T, R]) Execute(ctx context.Context) Result {
	out, err := j.fn(ctx, j.items)
	if err == nil && len(out) != len(j.items) {
		err = fmt.Errorf("batch returned %d results for %d inputs", len(out), len(j.items))
	}
	return &batchResult[R]{out: out, err: err}
}

type batchResult[R any] struct {
	out []R
	err error
}

func (r *batchResult[R]) GetError() error {
	return r.err
}

// MapBatches runs fn over size-bounded chunks of items on a worker pool and
// concatenates the outputs in input order. The first failing chunk's error
// is returned.
func MapBatches[T, R any](ctx context.Context, items []T, size, workers int, fn BatchFunc[T, R]) ([]R, error) {
	chunks := Batches(items, size)
	if len(chunks) == 0 {
		return []R{}, nil
	}

	jobs := make([]Job, len(chunks))
	for i, chunk := range chunks {
		jobs[i] = &batchJob[T, R]{items: chunk, fn: fn}
	}

	out := make([]R, 0, len(items))
	for i, r := range Run(ctx, workers, jobs) {
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(chunks), err)
		}
		out = append(out, r.(*batchResult[R]).out...)
	}
	return out, nil
}
