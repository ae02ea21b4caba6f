package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/catalog-seeder/models"
	"github.com/yashrajoria/catalog-seeder/repository"
)

type failingListStore struct {
	*repository.MemoryStore
	err error
}

func (f *failingListStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	return nil, f.err
}

func TestDryRunBuilder_ClassifiesSection(t *testing.T) {
	store := repository.NewMemoryStore()
	store.Put("brands", "b1", repository.Document{"name": "Acme", "imageURL": "", "isActive": true, "updatedAt": "yesterday"})
	store.Put("brands", "b2", repository.Document{"name": "Old name", "imageURL": "", "isActive": true})
	store.Put("brands", "b9", repository.Document{"name": "Orphan"})

	sec := models.BrandSection("brands", []models.Brand{
		{ID: "b1", Name: "Acme", IsActive: true},
		{ID: "b2", Name: "New name", IsActive: true},
		{ID: "b3", Name: "Fresh"},
	})

	res, err := NewDryRunBuilder(store, 2, nil).BuildSection(context.Background(), sec)

	require.NoError(t, err)
	assert.Equal(t, models.SectionResult{
		Name: "brands", WillCreate: 1, WillUpdate: 1, WillSkip: 1, WillDelete: 1, TotalJSON: 3,
	}, res)

	stats := store.Stats()
	assert.Equal(t, int64(3), stats.Gets)
	assert.Equal(t, int64(1), stats.Lists)
	assert.Zero(t, stats.UpsertCommits)
	assert.Zero(t, stats.DeleteCommits)
}

func TestDryRunBuilder_ReportKeepsSectionOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	sections := []models.Section{
		models.BrandSection("brands", []models.Brand{{ID: "b1", Name: "Acme"}}),
		models.CategorySection("categories", nil),
		models.ProductSection("products", []models.Product{{ID: "p1", Name: "Shoe"}}),
	}

	report, err := NewDryRunBuilder(store, 0, nil).BuildReport(context.Background(), sections)

	require.NoError(t, err)
	require.Len(t, report.Sections, 3)
	assert.Equal(t, "brands", report.Sections[0].Name)
	assert.Equal(t, "categories", report.Sections[1].Name)
	assert.Equal(t, "products", report.Sections[2].Name)
	assert.False(t, report.NothingToDo())
}

func TestDryRunBuilder_ListFailureFailsSection(t *testing.T) {
	boom := errors.New("listing failed")
	store := &failingListStore{MemoryStore: repository.NewMemoryStore(), err: boom}
	sec := models.BrandSection("brands", []models.Brand{{ID: "b1", Name: "Acme"}})

	_, err := NewDryRunBuilder(store, 0, nil).BuildSection(context.Background(), sec)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "dry-run brands")
}

func TestSameFields_IgnoresKeyOrderAndExtraFields(t *testing.T) {
	local := models.Product{
		ID: "p1", Name: "Shoe", Price: 10, Keywords: []string{"a", "b"}, IsActive: true,
	}.Fields()

	// Remote values come back from the store as generic JSON-ish types.
	remote := map[string]interface{}{
		"updatedAt":   "2024-01-01T00:00:00Z",
		"keywords":    []interface{}{"a", "b"},
		"isActive":    true,
		"price":       int64(10),
		"brandId":     "",
		"categoryId":  "",
		"nameLower":   "",
		"description": "",
		"imageURL":    "",
		"name":        "Shoe",
	}

	same, err := SameFields(local, remote, models.ProductCompareKeys)
	require.NoError(t, err)
	assert.True(t, same)

	remote["keywords"] = []interface{}{"b", "a"}
	same, err = SameFields(local, remote, models.ProductCompareKeys)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestCanonical_SortsKeysAndSkipsMissing(t *testing.T) {
	out, err := Canonical(map[string]interface{}{"z": 1, "a": "x"}, []string{"z", "a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","z":1}`, out)
}

func TestOrphans(t *testing.T) {
	local := map[string]struct{}{"b1": {}}
	assert.Equal(t, []string{"b2", "b3"}, orphans([]string{"b1", "b2", "b3"}, local))
	assert.Empty(t, orphans([]string{"b1"}, local))
}
