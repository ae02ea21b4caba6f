package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDryRunReport_NothingToDo(t *testing.T) {
	r := &DryRunReport{Sections: []SectionResult{
		{Name: SectionBrands, WillSkip: 2, TotalJSON: 2},
		{Name: SectionCategories, WillSkip: 1, TotalJSON: 1},
	}}
	assert.True(t, r.NothingToDo())

	r.Sections[1].WillDelete = 1
	assert.False(t, r.NothingToDo())
}

func TestDryRunReport_Summary(t *testing.T) {
	r := &DryRunReport{Sections: []SectionResult{
		{Name: SectionBrands, WillCreate: 1, WillUpdate: 2, WillSkip: 3, WillDelete: 4, TotalJSON: 6},
	}}

	assert.Equal(t, "Dry-run:\n- brands: create 1, update 2, skip 3, delete 4 (json 6)", r.Summary())
	assert.Equal(t, []string{"- brands: create 1, update 2, skip 3, delete 4 (json 6)"}, r.SummaryLines())
}

func TestImportOutcome_Totals(t *testing.T) {
	o := NewImportOutcome()
	o.Set(SectionBrands, SectionWriteResult{Upserted: 2})
	o.Set(SectionProducts, SectionWriteResult{Upserted: 3, Deleted: 1})

	up, del := o.Totals()
	assert.Equal(t, 5, up)
	assert.Equal(t, 1, del)
	assert.True(t, o.Get(SectionProducts).DidWrite())
	assert.False(t, o.Get(SectionCategories).DidWrite())
}

func TestSection_IDs(t *testing.T) {
	s := BrandSection("brands", []Brand{{ID: "b2"}, {ID: "b1"}})
	assert.Equal(t, []string{"b2", "b1"}, s.IDs())
	assert.Len(t, s.IDSet(), 2)
	assert.Equal(t, BrandCompareKeys, s.CompareKeys)
}

func TestCategory_FieldsNormalizesNilSlice(t *testing.T) {
	f := Category{ID: "c1", Name: "Shoes"}.Fields()
	assert.Equal(t, []string{}, f["brandIds"])
}
