package mirror

import (
	"context"

	"go.uber.org/zap"

	"flocksync/internal/domain"
)

// Query is a standing query: it re-runs whenever any write touches its
// collection and pushes the fresh result set, so consumers never issue
// explicit invalidation calls.
type Query[T domain.Record] struct {
	results chan []T
	cancel  context.CancelFunc
}

// Results yields full result slices, newest evaluation last. The channel is
// closed when the query is closed, its context ends, or the store shuts
// down. A slow consumer only ever sees the latest evaluation; intermediate
// ones are coalesced away.
func (q *Query[T]) Results() <-chan []T { return q.results }

// Close detaches the query.
func (q *Query[T]) Close() { q.cancel() }

// Watch registers a standing query over a collection. The initial evaluation
// is pushed immediately.
func Watch[T domain.Record](ctx context.Context, s *Store, collection domain.Collection, pred func(T) bool) (*Query[T], error) {
	// Evaluate once up front so a bad predicate-free read fails loudly at
	// registration rather than inside the goroutine.
	first, err := List[T](ctx, s, collection, pred)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	q := &Query[T]{
		results: make(chan []T, 1),
		cancel:  cancel,
	}
	q.results <- first

	signal, unregister := s.register(collection)

	go func() {
		defer close(q.results)
		defer unregister()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signal:
				if !ok {
					// Store closed.
					return
				}
				rows, err := List[T](ctx, s, collection, pred)
				if err != nil {
					if ctx.Err() == nil {
						s.log.Warn("standing query re-evaluation failed",
							zap.String("collection", collection.String()), zap.Error(err))
					}
					return
				}
				// Coalesce: drop an unconsumed older result.
				select {
				case <-q.results:
				default:
				}
				select {
				case q.results <- rows:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return q, nil
}

// register adds a write-signal channel for a collection and returns it with
// its deregistration func.
func (s *Store) register(collection domain.Collection) (chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[int]chan struct{})
	}
	s.watchers[collection][id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if byID, ok := s.watchers[collection]; ok {
			delete(byID, id)
		}
	}
}

// notify wakes every standing query on the collection. Signals coalesce: a
// watcher that has not consumed the previous signal gets no second one.
func (s *Store) notify(collection domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
