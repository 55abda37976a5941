// Package search keeps a denormalized, secret-free copy of accounts in
// Elasticsearch for administrative lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/internal/domain/entity"
)

// AccountDocument is what gets indexed. It never carries credentials.
type AccountDocument struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (d AccountDocument) account() *entity.Account {
	return &entity.Account{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Role:      entity.Role(d.Role),
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
	}
}

func documentOf(a *entity.Account) AccountDocument {
	return AccountDocument{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      string(a.Role),
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

type AccountIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewAccountIndex(es *elasticsearch.Client, index string) *AccountIndex {
	return &AccountIndex{es: es, index: index}
}

// Index upserts the account under its id.
func (x *AccountIndex) Index(ctx context.Context, a *entity.Account) error {
	body, err := json.Marshal(documentOf(a))
	if err != nil {
		return err
	}
	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(a.ID),
	)
	if err != nil {
		return fmt.Errorf("index account %s: %w", a.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index account %s: %s", a.ID, res.Status())
	}
	return nil
}

// AfterSave adapts Index to an afterSave hook. Indexing failures are logged,
// not returned: the index is derived data and the save already happened.
func (x *AccountIndex) AfterSave(logger *logrus.Logger) func(context.Context, *entity.Account) error {
	return func(ctx context.Context, a *entity.Account) error {
		if err := x.Index(ctx, a); err != nil {
			logger.WithError(err).WithField("account_id", a.ID).Warn("search indexing failed")
		}
		return nil
	}
}

// Search runs a fuzzy multi_match over name and email.
func (x *AccountIndex) Search(ctx context.Context, text string, size int) ([]*entity.Account, error) {
	q := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"name^2", "email"},
				"fuzziness": "AUTO",
			},
		},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
		x.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("search accounts: %s: %s", res.Status(), b)
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source AccountDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	docs := make([]*entity.Account, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		docs = append(docs, h.Source.account())
	}
	return docs, nil
}
