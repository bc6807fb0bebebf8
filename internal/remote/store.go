package remote

import "context"

// OpKind discriminates batch operations.
type OpKind string

const (
	OpPut    OpKind = "put"
	OpDelete OpKind = "delete"
)

// Operation is a single write inside a batch commit.
type Operation struct {
	Kind       OpKind   `json:"kind"`
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Fields     Document `json:"fields,omitempty"`
	Merge      bool     `json:"merge,omitempty"`
}

// QueryOptions tunes QueryWhere ordering.
type QueryOptions struct {
	OrderBy    string
	Descending bool
}

// Store is the low-level contract against the remote document store. All
// writes are upserts keyed by the caller-supplied document ID.
type Store interface {
	Put(ctx context.Context, collection, id string, fields Document, merge bool) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	QueryWhere(ctx context.Context, collection, field string, value interface{}, opts *QueryOptions) ([]Document, error)
	Commit(ctx context.Context, ops []Operation) error
}

// ChangeType classifies an incremental change event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one incremental event delivered over a watch subscription.
type Change struct {
	Type ChangeType `json:"type"`
	Doc  Document   `json:"doc"`
}

// Filter is a server-side equality filter on a watch subscription.
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Subscription is a live server-push channel for one collection.
type Subscription interface {
	// Changes delivers events until the subscription closes. The channel is
	// closed after Close or on a transport failure; Err reports the cause.
	Changes() <-chan Change
	Err() error
	Close() error
}

// Watcher opens live subscriptions.
type Watcher interface {
	Watch(ctx context.Context, collection string, filters []Filter) (Subscription, error)
}
