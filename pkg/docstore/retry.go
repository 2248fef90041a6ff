package docstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the exponential backoff applied to transient failures.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each retry with the error that caused it.
	OnRetry func(op string, err error, wait time.Duration)
}

// RetryStore retries transient failures of the wrapped store. NotFound, validation
// and cancellation errors are returned immediately. Subscriptions are not retried.
type RetryStore struct {
	Store
	policy RetryPolicy
}

func WithRetry(store Store, policy RetryPolicy) *RetryStore {
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 100 * time.Millisecond
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = 2 * time.Second
	}
	return &RetryStore{Store: store, policy: policy}
}

func (s *RetryStore) do(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.policy.InitialInterval
	b.MaxInterval = s.policy.MaxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.policy.MaxRetries), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		if s.policy.OnRetry != nil {
			s.policy.OnRetry(op, err, wait)
		}
	})
}

func (s *RetryStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.do(ctx, "get", func() error {
		var err error
		snap, err = s.Store.Get(ctx, collection, id)
		return err
	})
	return snap, err
}

func (s *RetryStore) Set(ctx context.Context, collection, id string, doc Document) error {
	return s.do(ctx, "set", func() error {
		return s.Store.Set(ctx, collection, id, doc)
	})
}

// Update is retried as a whole. Callers that use Increment must accept that a write
// whose acknowledgement was lost can be applied twice; transactional paths do not use
// this method.
func (s *RetryStore) Update(ctx context.Context, collection, id string, updates []Update) error {
	return s.do(ctx, "update", func() error {
		return s.Store.Update(ctx, collection, id, updates)
	})
}

func (s *RetryStore) Delete(ctx context.Context, collection, id string) error {
	return s.do(ctx, "delete", func() error {
		return s.Store.Delete(ctx, collection, id)
	})
}

func (s *RetryStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	var snaps []*Snapshot
	err := s.do(ctx, "query", func() error {
		var err error
		snaps, err = s.Store.Query(ctx, q)
		return err
	})
	return snaps, err
}

func (s *RetryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.do(ctx, "transaction", func() error {
		return s.Store.RunTransaction(ctx, fn)
	})
}

func (s *RetryStore) Batch() Batch {
	return &retryBatch{Batch: s.Store.Batch(), store: s}
}

type retryBatch struct {
	Batch
	store *RetryStore
}

func (b *retryBatch) Commit(ctx context.Context) error {
	return b.store.do(ctx, "batch", func() error {
		return b.Batch.Commit(ctx)
	})
}
