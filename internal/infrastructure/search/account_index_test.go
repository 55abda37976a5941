package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/pkg/helpers"
)

func fakeES(t *testing.T, handler http.HandlerFunc) *AccountIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead && r.URL.Path == "/" {
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	es, err := helpers.NewESClient(context.Background(), helpers.ESOptions{Addrs: []string{srv.URL}})
	require.NoError(t, err)
	return NewAccountIndex(es, "accounts")
}

func TestAccountIndex_IndexOmitsSecrets(t *testing.T) {
	var path string
	var body map[string]any
	idx := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	})

	a := &entity.Account{ID: "u1", Name: "Ann", Email: "ann@x.com", Role: entity.RoleGuide, PasswordHash: "secret", Active: true}
	require.NoError(t, idx.Index(context.Background(), a))

	assert.True(t, strings.HasPrefix(path, "/accounts/_doc/u1"), path)
	assert.Equal(t, "Ann", body["name"])
	assert.Equal(t, "guide", body["role"])
	for k := range body {
		assert.NotContains(t, strings.ToLower(k), "password")
	}
}

func TestAccountIndex_AfterSaveSwallowsErrors(t *testing.T) {
	idx := fakeES(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"bad"}`)
	})
	err := idx.Index(context.Background(), &entity.Account{ID: "u1"})
	assert.Error(t, err)

	hook := idx.AfterSave(helpers.NewNopLogger())
	assert.NoError(t, hook(context.Background(), &entity.Account{ID: "u1"}))
}

func TestAccountIndex_Search(t *testing.T) {
	var query map[string]any
	idx := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/accounts/_search"))
		_ = json.NewDecoder(r.Body).Decode(&query)
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_source":{"id":"u1","name":"Ann","email":"ann@x.com","role":"user","active":true}},
			{"_source":{"id":"u2","name":"Anna","email":"anna@x.com","role":"admin","active":true}}
		]}}`)
	})

	docs, err := idx.Search(context.Background(), "ann", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "u2", docs[1].ID)
	assert.Equal(t, entity.RoleAdmin, docs[1].Role)
	assert.Contains(t, query, "query")
}
