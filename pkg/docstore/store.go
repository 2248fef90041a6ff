// Package docstore is a thin client over a schemaless document database.
//
// Documents are addressed by collection path and id. A collection path is either a
// top-level name ("users") or a subcollection path ("chats/{threadId}/messages").
// Subscriptions deliver the full current state of a document or query result on
// every change, in write order for a single document, until stopped.
package docstore

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Document is the schemaless payload of a stored record.
type Document map[string]interface{}

// Snapshot is the state of one document at a point in time.
type Snapshot struct {
	ID         string
	Collection string
	Exists     bool
	Data       Document
	UpdateTime time.Time
}

// Update is a partial write of one dotted field path. Value may be a plain value or
// one of the field transforms (ArrayUnion, ArrayRemove, Increment, Delete).
type Update struct {
	Path  string
	Value interface{}
}

// Store is the document database consumed by every component.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	Update(ctx context.Context, collection, id string, updates []Update) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]*Snapshot, error)

	Subscribe(ctx context.Context, collection, id string) (*Subscription, error)
	SubscribeQuery(ctx context.Context, q Query) (*Subscription, error)

	Batch() Batch
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// Tx is a read-modify-write transaction. All reads must happen before writes.
type Tx interface {
	Get(collection, id string) (*Snapshot, error)
	Query(q Query) ([]*Snapshot, error)
	Set(collection, id string, doc Document) error
	Update(collection, id string, updates []Update) error
	Delete(collection, id string) error
}

// Batch groups writes that are committed together.
type Batch interface {
	Set(collection, id string, doc Document)
	Update(collection, id string, updates []Update)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

// SubcollectionPath joins a parent document and child collection name.
func SubcollectionPath(parent, parentID, child string) string {
	return parent + "/" + parentID + "/" + child
}

// splitPath returns the root collection, the parent document id and the child
// collection name of a collection path. Top-level paths return an empty parent.
func splitPath(collection string) (root, parentID, child string) {
	parts := strings.Split(collection, "/")
	if len(parts) == 3 {
		return parts[0], parts[1], parts[2]
	}
	return collection, "", ""
}

// UpdatesFromMap converts a field map into updates ordered by path.
func UpdatesFromMap(fields map[string]interface{}) []Update {
	updates := make([]Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, Update{Path: path, Value: value})
	}
	sortUpdates(updates)
	return updates
}

func sortUpdates(updates []Update) {
	sort.Slice(updates, func(i, j int) bool { return updates[i].Path < updates[j].Path })
}
