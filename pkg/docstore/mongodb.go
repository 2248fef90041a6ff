package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoIDField     = "_id"
	mongoParentField = "_parent"
)

// MongoStore maps the document model onto MongoDB. A subcollection path
// "chats/{id}/messages" is stored in collection "chats_messages" with the parent id
// in a _parent field. Subscriptions use change streams and need a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{client: db.Client(), db: db}
}

// CollectionName returns the MongoDB collection that backs a collection path.
func CollectionName(path string) string {
	root, parentID, child := splitPath(path)
	if parentID == "" {
		return root
	}
	return root + "_" + child
}

func (s *MongoStore) resolve(path string) (*mongo.Collection, string) {
	_, parentID, _ := splitPath(path)
	return s.db.Collection(CollectionName(path)), parentID
}

func scopeFilter(parentID string, filter bson.D) bson.D {
	if parentID != "" {
		filter = append(filter, bson.E{Key: mongoParentField, Value: parentID})
	}
	return filter
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	coll, parentID := s.resolve(collection)
	return s.findOne(ctx, coll, collection, parentID, id)
}

func (s *MongoStore) findOne(ctx context.Context, coll *mongo.Collection, collection, parentID, id string) (*Snapshot, error) {
	var raw bson.M
	err := coll.FindOne(ctx, scopeFilter(parentID, bson.D{{Key: mongoIDField, Value: id}})).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, classifyMongo("get", err)
	}
	return fromMongo(collection, raw), nil
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, doc Document) error {
	coll, parentID := s.resolve(collection)
	return s.replace(ctx, coll, parentID, id, doc)
}

func (s *MongoStore) replace(ctx context.Context, coll *mongo.Collection, parentID, id string, doc Document) error {
	filter := scopeFilter(parentID, bson.D{{Key: mongoIDField, Value: id}})
	_, err := coll.ReplaceOne(ctx, filter, toMongoDocument(parentID, id, doc), options.Replace().SetUpsert(true))
	if err != nil {
		return classifyMongo("set", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, updates []Update) error {
	coll, parentID := s.resolve(collection)
	return s.update(ctx, coll, parentID, id, updates)
}

func (s *MongoStore) update(ctx context.Context, coll *mongo.Collection, parentID, id string, updates []Update) error {
	update, err := toMongoUpdate(updates)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, scopeFilter(parentID, bson.D{{Key: mongoIDField, Value: id}}), update)
	if err != nil {
		return classifyMongo("update", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	coll, parentID := s.resolve(collection)
	_, err := coll.DeleteOne(ctx, scopeFilter(parentID, bson.D{{Key: mongoIDField, Value: id}}))
	if err != nil {
		return classifyMongo("delete", err)
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	coll, parentID := s.resolve(q.Collection)
	return s.find(ctx, coll, parentID, q)
}

func (s *MongoStore) find(ctx context.Context, coll *mongo.Collection, parentID string, q Query) ([]*Snapshot, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Direction == Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, toMongoFilter(parentID, q.Filters), opts)
	if err != nil {
		return nil, classifyMongo("query", err)
	}
	defer cursor.Close(ctx)

	snaps := make([]*Snapshot, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		snaps = append(snaps, fromMongo(q.Collection, raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, classifyMongo("query", err)
	}
	return snaps, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, collection, id string) (*Subscription, error) {
	coll, parentID := s.resolve(collection)
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}}}
	stream, err := coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, classifyMongo("listen", err)
	}

	sub := newSubscription(ctx)
	sub.run(func(ctx context.Context, send func(Event) bool) {
		defer stream.Close(context.Background())
		read := func() Event {
			snap, err := s.findOne(ctx, coll, collection, parentID, id)
			if errors.Is(err, ErrNotFound) {
				return Event{Doc: &Snapshot{ID: id, Collection: collection}}
			}
			return Event{Doc: snap, Err: err}
		}
		s.pump(ctx, stream, read, send)
	})
	return sub, nil
}

func (s *MongoStore) SubscribeQuery(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	coll, parentID := s.resolve(q.Collection)
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, classifyMongo("listen", err)
	}

	sub := newSubscription(ctx)
	sub.run(func(ctx context.Context, send func(Event) bool) {
		defer stream.Close(context.Background())
		read := func() Event {
			docs, err := s.find(ctx, coll, parentID, q)
			return Event{Docs: docs, Err: err}
		}
		s.pump(ctx, stream, read, send)
	})
	return sub, nil
}

// pump sends the current state, then re-reads it after every change event.
func (s *MongoStore) pump(ctx context.Context, stream *mongo.ChangeStream, read func() Event, send func(Event) bool) {
	ev := read()
	if !send(ev) || ev.Err != nil {
		return
	}
	for stream.Next(ctx) {
		ev := read()
		if ctx.Err() != nil {
			return
		}
		if !send(ev) || ev.Err != nil {
			return
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		send(Event{Err: classifyMongo("listen", err)})
	}
}

func (s *MongoStore) Batch() Batch {
	return &mongoBatch{store: s}
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return classifyMongo("transaction", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: s, ctx: sc})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return classifyMongo("transaction", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoTx applies writes immediately inside the session; the session commits them.
type mongoTx struct {
	store *MongoStore
	ctx   mongo.SessionContext
}

func (t *mongoTx) Get(collection, id string) (*Snapshot, error) {
	coll, parentID := t.store.resolve(collection)
	return t.store.findOne(t.ctx, coll, collection, parentID, id)
}

func (t *mongoTx) Query(q Query) ([]*Snapshot, error) {
	return t.store.Query(t.ctx, q)
}

func (t *mongoTx) Set(collection, id string, doc Document) error {
	coll, parentID := t.store.resolve(collection)
	return t.store.replace(t.ctx, coll, parentID, id, doc)
}

func (t *mongoTx) Update(collection, id string, updates []Update) error {
	coll, parentID := t.store.resolve(collection)
	return t.store.update(t.ctx, coll, parentID, id, updates)
}

func (t *mongoTx) Delete(collection, id string) error {
	return t.store.Delete(t.ctx, collection, id)
}

type mongoBatch struct {
	store *MongoStore
	ops   []writeOp
}

func (b *mongoBatch) Set(collection, id string, doc Document) {
	b.ops = append(b.ops, writeOp{kind: opSet, collection: collection, id: id, doc: doc})
}

func (b *mongoBatch) Update(collection, id string, updates []Update) {
	b.ops = append(b.ops, writeOp{kind: opUpdate, collection: collection, id: id, updates: updates})
}

func (b *mongoBatch) Delete(collection, id string) {
	b.ops = append(b.ops, writeOp{kind: opDelete, collection: collection, id: id})
}

func (b *mongoBatch) Len() int {
	return len(b.ops)
}

// Commit issues one ordered bulk write per backing collection.
func (b *mongoBatch) Commit(ctx context.Context) error {
	grouped := make(map[string][]mongo.WriteModel)
	var names []string
	for _, op := range b.ops {
		name := CollectionName(op.collection)
		_, parentID, _ := splitPath(op.collection)
		filter := scopeFilter(parentID, bson.D{{Key: mongoIDField, Value: op.id}})

		var model mongo.WriteModel
		switch op.kind {
		case opSet:
			model = mongo.NewReplaceOneModel().
				SetFilter(filter).
				SetReplacement(toMongoDocument(parentID, op.id, op.doc)).
				SetUpsert(true)
		case opUpdate:
			update, err := toMongoUpdate(op.updates)
			if err != nil {
				return err
			}
			model = mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update)
		case opDelete:
			model = mongo.NewDeleteOneModel().SetFilter(filter)
		}
		if _, ok := grouped[name]; !ok {
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], model)
	}

	for _, name := range names {
		_, err := b.store.db.Collection(name).BulkWrite(ctx, grouped[name], options.BulkWrite().SetOrdered(true))
		if err != nil {
			return classifyMongo("batch", err)
		}
	}
	return nil
}

func toMongoDocument(parentID, id string, doc Document) bson.D {
	out := bson.D{{Key: mongoIDField, Value: id}}
	if parentID != "" {
		out = append(out, bson.E{Key: mongoParentField, Value: parentID})
	}
	encoded, _ := toBSON(normalizeMap(doc)).(bson.D)
	for _, e := range encoded {
		if e.Key == mongoIDField || e.Key == mongoParentField {
			continue
		}
		out = append(out, e)
	}
	return out
}

// toBSON converts maps to key-sorted bson.D so that equal documents encode equally,
// which $addToSet relies on.
func toBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(keys))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: toBSON(val[k])})
		}
		return d
	case []interface{}:
		arr := make(bson.A, len(val))
		for i, elem := range val {
			arr[i] = toBSON(elem)
		}
		return arr
	}
	return v
}

func toMongoUpdate(updates []Update) (bson.D, error) {
	set, unset, inc, addToSet, pullAll := bson.D{}, bson.D{}, bson.D{}, bson.D{}, bson.D{}
	for _, u := range updates {
		if u.Path == "" {
			return nil, fmt.Errorf("update path is required")
		}
		switch v := u.Value.(type) {
		case deleteField:
			unset = append(unset, bson.E{Key: u.Path, Value: ""})
		case increment:
			inc = append(inc, bson.E{Key: u.Path, Value: v.by})
		case arrayUnion:
			addToSet = append(addToSet, bson.E{Key: u.Path, Value: bson.D{{Key: "$each", Value: toBSON(normalizeArgs(v.elems))}}})
		case arrayRemove:
			pullAll = append(pullAll, bson.E{Key: u.Path, Value: toBSON(normalizeArgs(v.elems))})
		default:
			set = append(set, bson.E{Key: u.Path, Value: toBSON(normalizeValue(u.Value))})
		}
	}

	update := bson.D{}
	for _, part := range []struct {
		op     string
		fields bson.D
	}{
		{"$set", set}, {"$unset", unset}, {"$inc", inc}, {"$addToSet", addToSet}, {"$pullAll", pullAll},
	} {
		if len(part.fields) > 0 {
			update = append(update, bson.E{Key: part.op, Value: part.fields})
		}
	}
	if len(update) == 0 {
		return nil, fmt.Errorf("no updates given")
	}
	return update, nil
}

func toMongoFilter(parentID string, filters []Filter) bson.D {
	conds := bson.A{}
	for _, f := range filters {
		value := toBSON(normalizeValue(f.Value))
		switch f.Op {
		case OpEqual, OpArrayContains:
			conds = append(conds, bson.D{{Key: f.Field, Value: value}})
		case OpLess:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$lt", Value: value}}}})
		case OpLessEqual:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$lte", Value: value}}}})
		case OpGreater:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$gt", Value: value}}}})
		case OpGreaterEqual:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$gte", Value: value}}}})
		}
	}
	filter := scopeFilter(parentID, bson.D{})
	if len(conds) > 0 {
		filter = append(filter, bson.E{Key: "$and", Value: conds})
	}
	return filter
}

func fromMongo(collection string, raw bson.M) *Snapshot {
	id := fmt.Sprint(raw[mongoIDField])
	delete(raw, mongoIDField)
	delete(raw, mongoParentField)
	data, _ := fromBSON(raw).(map[string]interface{})
	return &Snapshot{ID: id, Collection: collection, Exists: true, Data: Document(data)}
}

// fromBSON turns driver types back into the plain values every backend returns.
func fromBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			out[k] = fromBSON(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			out[k] = fromBSON(elem)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = fromBSON(elem)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = fromBSON(elem)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	case int32:
		return int64(val)
	}
	return v
}

func classifyMongo(op string, err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return transient(op, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("RetryableWriteError")) {
		return transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
