package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	// EmulatorHost points the client at a local emulator (host:port).
	EmulatorHost string
}

// FirestoreStore is the Cloud Firestore backend.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	if cfg.EmulatorHost != "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorHost)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" && cfg.EmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// NewFirestoreStoreFromClient wraps an existing client, e.g. one from a Firebase app.
func NewFirestoreStoreFromClient(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) doc(collection, id string) (*firestore.DocumentRef, error) {
	col := s.client.Collection(collection)
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	return col.Doc(id), nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	ref, err := s.doc(collection, id)
	if err != nil {
		return nil, err
	}
	ds, err := ref.Get(ctx)
	if err != nil {
		return nil, classifyFirestore("get", err)
	}
	return fromFirestore(collection, ds), nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, doc Document) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, toFirestoreMap(doc)); err != nil {
		return classifyFirestore("set", err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, updates []Update) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, toFirestoreUpdates(updates)); err != nil {
		return classifyFirestore("update", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return classifyFirestore("delete", err)
	}
	return nil
}

func (s *FirestoreStore) query(q Query) (firestore.Query, error) {
	if err := q.validate(); err != nil {
		return firestore.Query{}, err
	}
	col := s.client.Collection(q.Collection)
	if col == nil {
		return firestore.Query{}, fmt.Errorf("invalid collection path %q", q.Collection)
	}
	fq := col.Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), normalizeValue(f.Value))
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	return collectFirestore(q.Collection, fq.Documents(ctx))
}

func (s *FirestoreStore) Subscribe(ctx context.Context, collection, id string) (*Subscription, error) {
	ref, err := s.doc(collection, id)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(ctx)
	sub.run(func(ctx context.Context, send func(Event) bool) {
		snapshots := ref.Snapshots(ctx)
		defer snapshots.Stop()
		for {
			ds, err := snapshots.Next()
			if err != nil && ds != nil && status.Code(err) == codes.NotFound {
				err = nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(Event{Err: classifyFirestore("listen", err)})
				return
			}
			if !send(Event{Doc: fromFirestore(collection, ds)}) {
				return
			}
		}
	})
	return sub, nil
}

func (s *FirestoreStore) SubscribeQuery(ctx context.Context, q Query) (*Subscription, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(ctx)
	sub.run(func(ctx context.Context, send func(Event) bool) {
		snapshots := fq.Snapshots(ctx)
		defer snapshots.Stop()
		for {
			qs, err := snapshots.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(Event{Err: classifyFirestore("listen", err)})
				return
			}
			docs, err := collectFirestore(q.Collection, qs.Documents)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(Event{Err: err})
				return
			}
			if !send(Event{Docs: docs}) {
				return
			}
		}
	})
	return sub, nil
}

func (s *FirestoreStore) Batch() Batch {
	return &firestoreBatch{store: s}
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: ftx})
	})
	if err != nil {
		return classifyFirestore("transaction", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) Get(collection, id string) (*Snapshot, error) {
	ref, err := t.store.doc(collection, id)
	if err != nil {
		return nil, err
	}
	ds, err := t.tx.Get(ref)
	if err != nil {
		return nil, classifyFirestore("get", err)
	}
	return fromFirestore(collection, ds), nil
}

func (t *firestoreTx) Query(q Query) ([]*Snapshot, error) {
	fq, err := t.store.query(q)
	if err != nil {
		return nil, err
	}
	return collectFirestore(q.Collection, t.tx.Documents(fq))
}

func (t *firestoreTx) Set(collection, id string, doc Document) error {
	ref, err := t.store.doc(collection, id)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, toFirestoreMap(doc))
}

func (t *firestoreTx) Update(collection, id string, updates []Update) error {
	ref, err := t.store.doc(collection, id)
	if err != nil {
		return err
	}
	return t.tx.Update(ref, toFirestoreUpdates(updates))
}

func (t *firestoreTx) Delete(collection, id string) error {
	ref, err := t.store.doc(collection, id)
	if err != nil {
		return err
	}
	return t.tx.Delete(ref)
}

// firestoreBatch buffers writes and flushes them through a BulkWriter on Commit, so
// a failed commit can be retried with the same batch.
type firestoreBatch struct {
	store *FirestoreStore
	ops   []writeOp
}

func (b *firestoreBatch) Set(collection, id string, doc Document) {
	b.ops = append(b.ops, writeOp{kind: opSet, collection: collection, id: id, doc: doc})
}

func (b *firestoreBatch) Update(collection, id string, updates []Update) {
	b.ops = append(b.ops, writeOp{kind: opUpdate, collection: collection, id: id, updates: updates})
}

func (b *firestoreBatch) Delete(collection, id string) {
	b.ops = append(b.ops, writeOp{kind: opDelete, collection: collection, id: id})
}

func (b *firestoreBatch) Len() int {
	return len(b.ops)
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	bw := b.store.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(b.ops))
	for _, op := range b.ops {
		ref, err := b.store.doc(op.collection, op.id)
		if err != nil {
			bw.End()
			return err
		}
		var job *firestore.BulkWriterJob
		switch op.kind {
		case opSet:
			job, err = bw.Set(ref, toFirestoreMap(op.doc))
		case opUpdate:
			job, err = bw.Update(ref, toFirestoreUpdates(op.updates))
		case opDelete:
			job, err = bw.Delete(ref)
		}
		if err != nil {
			bw.End()
			return classifyFirestore("batch", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, classifyFirestore("batch", err))
		}
	}
	return errors.Join(errs...)
}

func fromFirestore(collection string, ds *firestore.DocumentSnapshot) *Snapshot {
	snap := &Snapshot{ID: ds.Ref.ID, Collection: collection, Exists: ds.Exists()}
	if snap.Exists {
		snap.Data = Document(normalizeMap(ds.Data()))
		snap.UpdateTime = ds.UpdateTime
	}
	return snap
}

func collectFirestore(collection string, it *firestore.DocumentIterator) ([]*Snapshot, error) {
	defer it.Stop()
	snaps := make([]*Snapshot, 0)
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return snaps, nil
		}
		if err != nil {
			return nil, classifyFirestore("query", err)
		}
		snaps = append(snaps, fromFirestore(collection, ds))
	}
}

func toFirestoreMap(doc Document) map[string]interface{} {
	if doc == nil {
		return map[string]interface{}{}
	}
	return normalizeMap(doc)
}

func toFirestoreUpdates(updates []Update) []firestore.Update {
	out := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		out = append(out, firestore.Update{Path: u.Path, Value: toFirestoreValue(u.Value)})
	}
	return out
}

func toFirestoreValue(v interface{}) interface{} {
	switch t := v.(type) {
	case arrayUnion:
		return firestore.ArrayUnion(normalizeArgs(t.elems)...)
	case arrayRemove:
		return firestore.ArrayRemove(normalizeArgs(t.elems)...)
	case increment:
		return firestore.Increment(t.by)
	case deleteField:
		return firestore.Delete
	}
	return normalizeValue(v)
}

func normalizeArgs(elems []interface{}) []interface{} {
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		out[i] = normalizeValue(e)
	}
	return out
}

func classifyFirestore(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case codes.Aborted:
		return fmt.Errorf("%s: %w: %v", op, ErrAborted, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal:
		return transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
