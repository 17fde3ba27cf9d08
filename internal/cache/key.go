// Package cache is a cache-aside layer in front of repository reads and
// HTTP handlers. Cached reads are grouped under tag sets so that a write
// can drop every entry it may have made stale. The cache is never a
// correctness dependency: any cache failure falls through to the source.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Operation names a repository call intercepted by the middleware.
type Operation string

const (
	OpFindUnique Operation = "findUnique"
	OpFindFirst  Operation = "findFirst"
	OpFindMany   Operation = "findMany"
	OpCount      Operation = "count"
	OpAggregate  Operation = "aggregate"

	OpCreate     Operation = "create"
	OpCreateMany Operation = "createMany"
	OpUpdate     Operation = "update"
	OpUpdateMany Operation = "updateMany"
	OpUpsert     Operation = "upsert"
	OpDelete     Operation = "delete"
	OpDeleteMany Operation = "deleteMany"
)

// IsRead reports whether results of op may be cached.
func (op Operation) IsRead() bool {
	switch op {
	case OpFindUnique, OpFindFirst, OpFindMany, OpCount, OpAggregate:
		return true
	}
	return false
}

// IsWrite reports whether op invalidates its model.
func (op Operation) IsWrite() bool {
	switch op {
	case OpCreate, OpCreateMany, OpUpdate, OpUpdateMany, OpUpsert, OpDelete, OpDeleteMany:
		return true
	}
	return false
}

// BuildKey returns namespace:model:op:<sha256 of args>. Args are
// canonicalised first, so equal values built with different field or key
// order share a key.
func BuildKey(namespace, model string, op Operation, args any) (string, error) {
	canonical, err := canonicalJSON(args)
	if err != nil {
		return "", fmt.Errorf("cache key for %s.%s: %w", model, op, err)
	}
	return namespace + ":" + model + ":" + string(op) + ":" + digest(canonical), nil
}

// TagKey names the set holding every key cached under tag.
func TagKey(namespace, tag string) string {
	return namespace + ":tag:" + tag
}

func httpKey(namespace, tag, request string) string {
	return namespace + ":http:" + tag + ":" + digest([]byte(request))
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON re-encodes v through generic values; encoding/json
// writes map keys sorted.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err = dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
