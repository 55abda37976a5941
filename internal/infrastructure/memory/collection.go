// Package memory is an in-process document store used for local runs and
// tests. It implements the same repository and query contracts as the
// postgres package.
package memory

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("memory: document not found")
	ErrDuplicate = errors.New("memory: duplicate value")
)

// Document is a stored record keyed by attribute name. "id" is reserved.
type Document map[string]any

func (d Document) clone() Document { return maps.Clone(d) }

// Collection holds documents with optional unique attributes. The mutex only
// makes single-document writes atomic; there are no multi-document transactions.
type Collection struct {
	mu     sync.RWMutex
	docs   map[string]Document
	order  []string
	unique []string
	hidden map[string]bool
}

type CollectionOption func(*Collection)

// WithUnique enforces uniqueness of the named attributes across documents.
func WithUnique(fields ...string) CollectionOption {
	return func(c *Collection) { c.unique = append(c.unique, fields...) }
}

// WithHidden keeps attributes out of list queries: they can be neither
// filtered, sorted nor selected there and never appear in list results.
func WithHidden(fields ...string) CollectionOption {
	return func(c *Collection) {
		for _, f := range fields {
			c.hidden[f] = true
		}
	}
}

func NewCollection(opts ...CollectionOption) *Collection {
	c := &Collection{docs: map[string]Document{}, hidden: map[string]bool{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert stores a copy of doc, assigning an id when it has none, and returns the id.
func (c *Collection) Insert(doc Document) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc = doc.clone()
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("%w: id %s", ErrDuplicate, id)
	}
	if err := c.checkUnique(id, doc); err != nil {
		return "", err
	}
	c.docs[id] = doc
	c.order = append(c.order, id)
	return id, nil
}

// Get returns a copy of the document with id.
func (c *Collection) Get(id string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return d.clone(), true
}

// Update applies fn to a copy of the document and stores the result if fn
// succeeds and unique attributes still hold. The whole step is atomic.
func (c *Collection) Update(id string, fn func(Document) error) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next["id"] = id
	if err := c.checkUnique(id, next); err != nil {
		return nil, err
	}
	c.docs[id] = next
	return next.clone(), nil
}

func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len counts stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Find starts an unrestricted query over the collection.
func (c *Collection) Find() *Query {
	return &Query{coll: c}
}

// List starts a query that enforces the collection's hidden attributes.
func (c *Collection) List() *Query {
	return &Query{coll: c, restricted: true}
}

func (c *Collection) snapshot() []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id].clone())
	}
	return out
}

func (c *Collection) checkUnique(id string, doc Document) error {
	for _, f := range c.unique {
		v, ok := doc[f]
		if !ok || v == nil {
			continue
		}
		for otherID, other := range c.docs {
			if otherID != id && other[f] == v {
				return fmt.Errorf("%w: %s", ErrDuplicate, f)
			}
		}
	}
	return nil
}
