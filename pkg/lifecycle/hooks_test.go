package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type doc struct {
	Email string
	trail []string
}

type handle struct {
	filters []string
}

func TestHooks_SaveStagesRunInOrder(t *testing.T) {
	h := New[doc, handle]().
		OnSave(BeforeSave, func(_ context.Context, d *doc) error { d.trail = append(d.trail, "b1"); return nil }).
		OnSave(BeforeSave, func(_ context.Context, d *doc) error { d.trail = append(d.trail, "b2"); return nil }).
		OnSave(AfterSave, func(_ context.Context, d *doc) error { d.trail = append(d.trail, "a1"); return nil })

	d := &doc{}
	assert.NoError(t, h.RunSave(context.Background(), BeforeSave, d))
	assert.NoError(t, h.RunSave(context.Background(), AfterSave, d))

	assert.Equal(t, []string{"b1", "b2", "a1"}, d.trail)
}

func TestHooks_SaveErrorStopsChain(t *testing.T) {
	boom := errors.New("boom")
	called := false
	h := New[doc, handle]().
		OnSave(BeforeSave, func(context.Context, *doc) error { return boom }).
		OnSave(BeforeSave, func(context.Context, *doc) error { called = true; return nil })

	err := h.RunSave(context.Background(), BeforeSave, &doc{})

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "beforeSave")
	assert.False(t, called)
}

func TestHooks_BeforeQueryScope(t *testing.T) {
	h := New[doc, handle]().OnBeforeQuery(func(_ context.Context, q handle, s Scope) handle {
		if !s.IncludeInactive {
			q.filters = append(q.filters, "active")
		}
		return q
	})

	assert.Equal(t, []string{"active"}, h.RunBeforeQuery(context.Background(), handle{}, Scope{}).filters)
	assert.Empty(t, h.RunBeforeQuery(context.Background(), handle{}, Scope{IncludeInactive: true}).filters)
}

func TestHooks_AfterQuery(t *testing.T) {
	h := New[doc, handle]().OnAfterQuery(func(_ context.Context, recs []map[string]any, _ Scope) error {
		for _, r := range recs {
			delete(r, "secret")
		}
		return nil
	})

	recs := []map[string]any{{"name": "a", "secret": "x"}}
	assert.NoError(t, h.RunAfterQuery(context.Background(), recs, Scope{}))
	assert.Equal(t, []map[string]any{{"name": "a"}}, recs)
}

func TestHooks_NilRegistry(t *testing.T) {
	var h *Hooks[doc, handle]
	assert.NoError(t, h.RunSave(context.Background(), BeforeSave, &doc{}))
	assert.Equal(t, handle{}, h.RunBeforeQuery(context.Background(), handle{}, Scope{}))
}

func TestHooks_OnSaveRejectsQueryStage(t *testing.T) {
	assert.Panics(t, func() {
		New[doc, handle]().OnSave(BeforeQuery, func(context.Context, *doc) error { return nil })
	})
}
