package memory

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/query"
)

func seedTours(t *testing.T) *Collection {
	t.Helper()
	c := NewCollection(WithHidden("secretTour"))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tours := []struct {
		name   string
		price  float64
		rating float64
	}{
		{"The Forest Hiker", 397, 4.7},
		{"The Sea Explorer", 497, 4.8},
		{"The Snow Adventurer", 997, 4.5},
		{"The City Wanderer", 1197, 4.4},
		{"The Park Camper", 1497, 4.9},
		{"The Sports Lover", 2997, 4.6},
		{"The Wine Taster", 1997, 4.5},
		{"The Star Gazer", 1997, 4.3},
		{"The Northern Lights", 1497, 4.9},
	}
	for i, tr := range tours {
		_, err := c.Insert(Document{
			"name":           tr.name,
			"price":          tr.price,
			"ratingsAverage": tr.rating,
			"secretTour":     false,
			"createdAt":      base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	return c
}

func TestQuery_ToursListEndToEnd(t *testing.T) {
	c := seedTours(t)
	values, err := url.ParseQuery("ratingsAverage[gte]=4.5&sort=-price&limit=5&page=1")
	require.NoError(t, err)

	res, err := query.Apply(c.List(), query.Parse(values)).Result(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Count, 5)
	assert.Equal(t, len(res.Records), res.Count)
	assert.EqualValues(t, 7, res.Total)
	prev := 1e18
	for _, r := range res.Records {
		assert.GreaterOrEqual(t, r["ratingsAverage"].(float64), 4.5)
		price := r["price"].(float64)
		assert.LessOrEqual(t, price, prev)
		prev = price
		assert.NotContains(t, r, "secretTour")
	}
	assert.Equal(t, "The Sports Lover", res.Records[0]["name"])
}

func TestQuery_ProjectionAndPagination(t *testing.T) {
	c := seedTours(t)
	spec := query.NewSpec(nil, []query.SortKey{{Field: "price"}, {Field: "name"}}, []string{"name"}, 2, 3)

	res, err := query.Apply(c.List(), spec).Result(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.EqualValues(t, 9, res.Total)
	for _, r := range res.Records {
		assert.ElementsMatch(t, []string{"id", "name"}, keys(r))
	}
	assert.Equal(t, "The City Wanderer", res.Records[0]["name"])
	assert.Equal(t, "The Northern Lights", res.Records[1]["name"])
	assert.Equal(t, "The Park Camper", res.Records[2]["name"])
}

func TestQuery_PageBeyondResultsIsEmpty(t *testing.T) {
	c := seedTours(t)
	res, err := query.Apply(c.List(), query.NewSpec(nil, nil, nil, 50, 10)).Result(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.EqualValues(t, 9, res.Total)
}

func TestQuery_HugePageIsEmpty(t *testing.T) {
	c := seedTours(t)
	values, err := url.ParseQuery("page=922337203685477581&limit=100")
	require.NoError(t, err)
	res, err := query.Apply(c.List(), query.Parse(values)).Result(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.EqualValues(t, 9, res.Total)
}

func TestQuery_StepsRunInCallOrder(t *testing.T) {
	c := seedTours(t)
	byPrice := []query.SortKey{{Field: "price", Desc: true}}

	// Limiting before filtering keeps only what survives the first two.
	docs, _, err := c.Find().OrderBy(byPrice...).Limit(2).
		Where(query.Predicate{Field: "ratingsAverage", Op: query.OpGte, Value: "4.6"}).
		Run(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "The Sports Lover", docs[0]["name"])
}

func TestQuery_Operators(t *testing.T) {
	c := seedTours(t)
	ctx := context.Background()
	count := func(p query.Predicate) int {
		docs, _, err := c.Find().Where(p).Run(ctx)
		require.NoError(t, err)
		return len(docs)
	}

	assert.Equal(t, 2, count(query.Predicate{Field: "price", Op: query.OpEq, Value: "1997"}))
	assert.Equal(t, 7, count(query.Predicate{Field: "price", Op: OpNe, Value: "1997"}))
	assert.Equal(t, 1, count(query.Predicate{Field: "price", Op: query.OpGt, Value: "1997"}))
	assert.Equal(t, 2, count(query.Predicate{Field: "price", Op: query.OpLt, Value: "997"}))
	assert.Equal(t, 3, count(query.Predicate{Field: "price", Op: query.OpLte, Value: "997"}))
	assert.Equal(t, 2, count(query.Predicate{Field: "name", Op: OpIn, Value: "The Wine Taster, The Star Gazer"}))
	assert.Equal(t, 9, count(query.Predicate{Field: "secretTour", Op: query.OpEq, Value: "false"}))
	assert.Equal(t, 0, count(query.Predicate{Field: "price", Op: query.OpGt, Value: "cheap"}))
	assert.Equal(t, 0, count(query.Predicate{Field: "missing", Op: query.OpEq, Value: "x"}))
	assert.Equal(t, 4, count(query.Predicate{Field: "createdAt", Op: query.OpGte, Value: "2024-01-01T05:00:00Z"}))
}

func TestQuery_RejectsUnknownOperatorAndHiddenFields(t *testing.T) {
	c := seedTours(t)
	ctx := context.Background()

	_, _, err := c.Find().Where(query.Predicate{Field: "price", Op: "regex", Value: "."}).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Contains(t, apperror.FieldsOf(err), "price[regex]")

	_, _, err = c.List().Where(query.Predicate{Field: "secretTour", Op: query.OpEq, Value: "true"}).Run(ctx)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, _, err = c.List().Select("secretTour").Run(ctx)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	// Unrestricted queries may use hidden attributes.
	docs, _, err := c.Find().Where(query.Predicate{Field: "secretTour", Op: query.OpEq, Value: "false"}).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 9)
}

func TestQuery_IsImmutable(t *testing.T) {
	c := seedTours(t)
	base := c.Find().Where(query.Predicate{Field: "price", Op: query.OpGte, Value: "1000"})
	narrowed := base.Limit(1)

	all, _, err := base.Run(context.Background())
	require.NoError(t, err)
	one, _, err := narrowed.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Len(t, one, 1)
}

func TestCollection_UniqueAndUpdate(t *testing.T) {
	c := NewCollection(WithUnique("email"))
	id, err := c.Insert(Document{"email": "a@x.com"})
	require.NoError(t, err)
	_, err = c.Insert(Document{"email": "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	other, err := c.Insert(Document{"email": "b@x.com"})
	require.NoError(t, err)
	_, err = c.Update(other, func(d Document) error { d["email"] = "a@x.com"; return nil })
	assert.ErrorIs(t, err, ErrDuplicate)

	got, ok := c.Get(other)
	require.True(t, ok)
	assert.Equal(t, "b@x.com", got["email"], "failed update leaves the document untouched")

	_, err = c.Update("nope", func(Document) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Delete(id))
	assert.ErrorIs(t, c.Delete(id), ErrNotFound)
	assert.Equal(t, 1, c.Len())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func ExampleQuery() {
	c := NewCollection()
	for _, p := range []float64{30, 10, 20} {
		_, _ = c.Insert(Document{"price": p})
	}
	docs, total, _ := c.Find().OrderBy(query.SortKey{Field: "price"}).Limit(2).Run(context.Background())
	fmt.Println(len(docs), total, docs[0]["price"])
	// Output: 2 3 10
}
