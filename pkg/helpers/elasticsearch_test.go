package helpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewESClient(t *testing.T) {
	_, err := NewESClient(context.Background(), ESOptions{})
	assert.Error(t, err)

	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(status)
	}))
	defer srv.Close()

	es, err := NewESClient(context.Background(), ESOptions{Addrs: []string{srv.URL}})
	require.NoError(t, err)
	assert.NotNil(t, es)

	status = http.StatusUnauthorized
	_, err = NewESClient(context.Background(), ESOptions{Addrs: []string{srv.URL}})
	assert.ErrorContains(t, err, "401")
}
