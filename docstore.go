package main

import (
	"context"
	"errors"
)

// Document is a schemaless record held in a named collection.
type Document map[string]any

var errDocumentNotFound = errors.New("document not found")

// DocumentStore is the remote collection collaborator: append-only
// inserts, ordered retrieval, and single-field updates.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	QueryAll(ctx context.Context, collection, orderByField string, descending bool) ([]Document, error)
	UpdateField(ctx context.Context, collection, id, field string, value any) error
	Close(ctx context.Context) error
}

func documentString(doc Document, key string) string {
	if value, ok := doc[key].(string); ok {
		return value
	}
	return ""
}

func documentInt64(doc Document, key string) int64 {
	switch value := doc[key].(type) {
	case int64:
		return value
	case int32:
		return int64(value)
	case int:
		return int64(value)
	case float64:
		return int64(value)
	}
	return 0
}

func documentFloat64(doc Document, key string) (float64, bool) {
	switch value := doc[key].(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int64:
		return float64(value), true
	case int32:
		return float64(value), true
	case int:
		return float64(value), true
	}
	return 0, false
}

func documentMap(doc Document, key string) (Document, bool) {
	switch value := doc[key].(type) {
	case Document:
		return value, true
	case map[string]any:
		return Document(value), true
	}
	return nil, false
}
