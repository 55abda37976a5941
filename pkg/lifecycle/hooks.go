// Package lifecycle holds explicit, named persistence hooks. Stores invoke a
// stage by name; hooks run in registration order.
package lifecycle

import (
	"context"
	"fmt"
)

type Stage string

const (
	BeforeSave  Stage = "beforeSave"
	AfterSave   Stage = "afterSave"
	BeforeQuery Stage = "beforeQuery"
	AfterQuery  Stage = "afterQuery"
)

// Scope describes the query a beforeQuery/afterQuery hook is attached to.
type Scope struct {
	// IncludeInactive is set by administrative paths that must see
	// soft-deleted records.
	IncludeInactive bool
}

// DocFunc runs on a single document around a save.
type DocFunc[T any] func(ctx context.Context, doc *T) error

// QueryFunc refines a query handle before it runs.
type QueryFunc[Q any] func(ctx context.Context, q Q, scope Scope) Q

// ResultFunc inspects or rewrites records after a query ran.
type ResultFunc func(ctx context.Context, records []map[string]any, scope Scope) error

// Hooks is a registry of hooks for one document type T queried through Q.
// Register everything at construction; it is not safe to register while
// the store is serving requests.
type Hooks[T any, Q any] struct {
	save   map[Stage][]DocFunc[T]
	query  []QueryFunc[Q]
	result []ResultFunc
}

func New[T any, Q any]() *Hooks[T, Q] {
	return &Hooks[T, Q]{save: map[Stage][]DocFunc[T]{}}
}

// OnSave registers fn for BeforeSave or AfterSave.
func (h *Hooks[T, Q]) OnSave(stage Stage, fn DocFunc[T]) *Hooks[T, Q] {
	if stage != BeforeSave && stage != AfterSave {
		panic(fmt.Sprintf("lifecycle: %q is not a save stage", stage))
	}
	h.save[stage] = append(h.save[stage], fn)
	return h
}

// OnBeforeQuery registers a BeforeQuery hook.
func (h *Hooks[T, Q]) OnBeforeQuery(fn QueryFunc[Q]) *Hooks[T, Q] {
	h.query = append(h.query, fn)
	return h
}

// OnAfterQuery registers an AfterQuery hook.
func (h *Hooks[T, Q]) OnAfterQuery(fn ResultFunc) *Hooks[T, Q] {
	h.result = append(h.result, fn)
	return h
}

// RunSave runs the hooks of a save stage; the first error stops the chain.
func (h *Hooks[T, Q]) RunSave(ctx context.Context, stage Stage, doc *T) error {
	if h == nil {
		return nil
	}
	for _, fn := range h.save[stage] {
		if err := fn(ctx, doc); err != nil {
			return fmt.Errorf("%s hook: %w", stage, err)
		}
	}
	return nil
}

// RunBeforeQuery threads q through every BeforeQuery hook.
func (h *Hooks[T, Q]) RunBeforeQuery(ctx context.Context, q Q, scope Scope) Q {
	if h == nil {
		return q
	}
	for _, fn := range h.query {
		q = fn(ctx, q, scope)
	}
	return q
}

// RunAfterQuery runs every AfterQuery hook over the materialized records.
func (h *Hooks[T, Q]) RunAfterQuery(ctx context.Context, records []map[string]any, scope Scope) error {
	if h == nil {
		return nil
	}
	for _, fn := range h.result {
		if err := fn(ctx, records, scope); err != nil {
			return fmt.Errorf("%s hook: %w", AfterQuery, err)
		}
	}
	return nil
}
