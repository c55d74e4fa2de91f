package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map is a parallel mapping function, which runs at most limit mapFuncs at once.
// The input and output are represented as iterators and results are yielded
// in the input order, so the typical usage is.
//
//	for result, err := range parallel.NewMap(ctx, 4, f).Iter(input) {}
//
// Errors of the input sequence are passed through at their position.
// Map is context aware: a canceled context or a consumer which stops
// iterating ends the processing. Iter returns only after all started
// mapFuncs have returned.
type Map[E, D any] struct {
	parentCtx context.Context
	limit     int
	mapFunc   func(context.Context, E) (D, error)
}

func NewMap[E, D any](parentCtx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit < 1 {
		limit = 1
	}
	return &Map[E, D]{
		parentCtx: parentCtx,
		limit:     limit,
		mapFunc:   mapFunc,
	}
}

func (m *Map[E, D]) Iter(seq iter.Seq2[E, error]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(m.parentCtx)
		var g errgroup.Group
		g.SetLimit(m.limit)

		// pending keeps a per entry channel in the input order
		pending := make(chan chan result[D], m.limit)
		producerDone := make(chan struct{})
		go func() {
			defer close(producerDone)
			defer close(pending)
			m.produce(ctx, &g, seq, pending)
		}()

		defer func() {
			cancel()
			<-producerDone
			_ = g.Wait()
		}()

		for out := range pending {
			r := <-out
			if m.parentCtx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}

func (m *Map[E, D]) produce(ctx context.Context, g *errgroup.Group, seq iter.Seq2[E, error], pending chan<- chan result[D]) {
	for entry, err := range seq {
		if ctx.Err() != nil {
			return
		}
		out := make(chan result[D], 1)
		if err != nil {
			out <- result[D]{e: err}
		} else {
			g.Go(func() error {
				d, err := m.mapFunc(ctx, entry)
				out <- result[D]{d: d, e: err}
				return nil
			})
		}
		select {
		case pending <- out:
		case <-ctx.Done():
			return
		}
	}
}
