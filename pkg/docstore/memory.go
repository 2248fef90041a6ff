package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and single-node local runs.
// Collections keep insertion order, which stands in for store-assigned order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	watchers    map[*memWatcher]struct{}
	now         func() time.Time
}

type memCollection struct {
	docs  map[string]*memDoc
	order []string
}

type memDoc struct {
	data    Document
	updated time.Time
}

type memWatcher struct {
	collection string
	id         string
	query      *Query
	notify     chan struct{}
}

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

type writeOp struct {
	kind       opKind
	collection string
	id         string
	doc        Document
	updates    []Update
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
		watchers:    make(map[*memWatcher]struct{}),
		now:         time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshotLocked(collection, id)
	if !snap.Exists {
		return nil, ErrNotFound
	}
	return snap, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc Document) error {
	return s.commit(ctx, []writeOp{{kind: opSet, collection: collection, id: id, doc: doc}})
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, updates []Update) error {
	return s.commit(ctx, []writeOp{{kind: opUpdate, collection: collection, id: id, updates: updates}})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.commit(ctx, []writeOp{{kind: opDelete, collection: collection, id: id}})
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(q), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection, id string) (*Subscription, error) {
	w := &memWatcher{collection: collection, id: id, notify: make(chan struct{}, 1)}
	return s.watch(ctx, w, func() Event {
		return Event{Doc: s.snapshotLocked(collection, id)}
	}), nil
}

func (s *MemoryStore) SubscribeQuery(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	w := &memWatcher{collection: q.Collection, query: &q, notify: make(chan struct{}, 1)}
	return s.watch(ctx, w, func() Event {
		return Event{Docs: s.queryLocked(q)}
	}), nil
}

// watch registers w and delivers the current state on registration and after every
// committed write that touches it. Signals coalesce, so a slow reader sees the latest
// state rather than every intermediate one.
func (s *MemoryStore) watch(ctx context.Context, w *memWatcher, read func() Event) *Subscription {
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}

	sub := newSubscription(ctx)
	sub.run(func(ctx context.Context, send func(Event) bool) {
		defer func() {
			s.mu.Lock()
			delete(s.watchers, w)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.notify:
				s.mu.RLock()
				ev := read()
				s.mu.RUnlock()
				if !send(ev) {
					return
				}
			}
		}
	})
	return sub
}

func (s *MemoryStore) Batch() Batch {
	return &memBatch{store: s}
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		s.mu.Unlock()
		return err
	}
	touched, err := s.applyLocked(tx.ops)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(touched)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) commit(ctx context.Context, ops []writeOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	touched, err := s.applyLocked(ops)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(touched)
	return nil
}

// applyLocked stages ops against copies and only publishes them if all succeed.
func (s *MemoryStore) applyLocked(ops []writeOp) ([]writeOp, error) {
	type key struct{ collection, id string }
	staged := make(map[key]Document)
	deleted := make(map[key]bool)
	var order []key

	current := func(k key) (Document, bool) {
		if deleted[k] {
			return nil, false
		}
		if doc, ok := staged[k]; ok {
			return doc, true
		}
		if col, ok := s.collections[k.collection]; ok {
			if d, ok := col.docs[k.id]; ok {
				return cloneDocument(d.data), true
			}
		}
		return nil, false
	}

	for _, op := range ops {
		if op.collection == "" || op.id == "" {
			return nil, fmt.Errorf("collection and id are required")
		}
		k := key{op.collection, op.id}
		if _, seen := staged[k]; !seen && !deleted[k] {
			order = append(order, k)
		}
		switch op.kind {
		case opSet:
			staged[k] = cloneDocument(op.doc)
			if staged[k] == nil {
				staged[k] = Document{}
			}
			delete(deleted, k)
		case opUpdate:
			doc, ok := current(k)
			if !ok {
				return nil, fmt.Errorf("update %s/%s: %w", op.collection, op.id, ErrNotFound)
			}
			if err := applyUpdates(doc, op.updates); err != nil {
				return nil, err
			}
			staged[k] = doc
		case opDelete:
			delete(staged, k)
			deleted[k] = true
		}
	}

	now := s.now()
	for _, k := range order {
		col := s.collections[k.collection]
		if col == nil {
			col = &memCollection{docs: make(map[string]*memDoc)}
			s.collections[k.collection] = col
		}
		if deleted[k] {
			if _, ok := col.docs[k.id]; ok {
				delete(col.docs, k.id)
				col.order = removeID(col.order, k.id)
			}
			continue
		}
		if _, ok := col.docs[k.id]; !ok {
			col.order = append(col.order, k.id)
		}
		col.docs[k.id] = &memDoc{data: staged[k], updated: now}
	}
	return ops, nil
}

func (s *MemoryStore) notify(ops []writeOp) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for w := range s.watchers {
		for _, op := range ops {
			if w.collection != op.collection {
				continue
			}
			if w.query == nil && w.id != op.id {
				continue
			}
			select {
			case w.notify <- struct{}{}:
			default:
			}
			break
		}
	}
}

func (s *MemoryStore) snapshotLocked(collection, id string) *Snapshot {
	snap := &Snapshot{ID: id, Collection: collection}
	col, ok := s.collections[collection]
	if !ok {
		return snap
	}
	d, ok := col.docs[id]
	if !ok {
		return snap
	}
	snap.Exists = true
	snap.Data = cloneDocument(d.data)
	snap.UpdateTime = d.updated
	return snap
}

func (s *MemoryStore) queryLocked(q Query) []*Snapshot {
	col, ok := s.collections[q.Collection]
	if !ok {
		return []*Snapshot{}
	}
	all := make([]*Snapshot, 0, len(col.order))
	for _, id := range col.order {
		all = append(all, s.snapshotLocked(q.Collection, id))
	}
	return q.apply(all)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

type memTx struct {
	store *MemoryStore
	ops   []writeOp
}

func (t *memTx) Get(collection, id string) (*Snapshot, error) {
	snap := t.store.snapshotLocked(collection, id)
	if !snap.Exists {
		return nil, ErrNotFound
	}
	return snap, nil
}

func (t *memTx) Query(q Query) ([]*Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return t.store.queryLocked(q), nil
}

func (t *memTx) Set(collection, id string, doc Document) error {
	t.ops = append(t.ops, writeOp{kind: opSet, collection: collection, id: id, doc: doc})
	return nil
}

func (t *memTx) Update(collection, id string, updates []Update) error {
	t.ops = append(t.ops, writeOp{kind: opUpdate, collection: collection, id: id, updates: updates})
	return nil
}

func (t *memTx) Delete(collection, id string) error {
	t.ops = append(t.ops, writeOp{kind: opDelete, collection: collection, id: id})
	return nil
}

type memBatch struct {
	store *MemoryStore
	ops   []writeOp
}

func (b *memBatch) Set(collection, id string, doc Document) {
	b.ops = append(b.ops, writeOp{kind: opSet, collection: collection, id: id, doc: doc})
}

func (b *memBatch) Update(collection, id string, updates []Update) {
	b.ops = append(b.ops, writeOp{kind: opUpdate, collection: collection, id: id, updates: updates})
}

func (b *memBatch) Delete(collection, id string) {
	b.ops = append(b.ops, writeOp{kind: opDelete, collection: collection, id: id})
}

func (b *memBatch) Len() int {
	return len(b.ops)
}

func (b *memBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	return b.store.commit(ctx, b.ops)
}
