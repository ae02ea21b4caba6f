package models

// Section keys, also used as collection names and checksum keys.
const (
	SectionBrands     = "brands"
	SectionCategories = "categories"
	SectionProducts   = "products"
)

var (
	BrandCompareKeys    = []string{"name", "imageURL", "isActive"}
	CategoryCompareKeys = []string{"name", "imageURL", "brandIds", "isActive"}
	ProductCompareKeys  = []string{
		"name", "description", "nameLower", "categoryId", "brandId",
		"price", "imageURL", "isActive", "keywords",
	}
)

// Section binds one record type to its remote collection and checksum key.
type Section struct {
	Key         string
	Collection  string
	CompareKeys []string
	Records     []Record
	// Digest is the content hash of the raw source the records were decoded from.
	Digest string
}

// IDs returns the record ids in input order.
func (s Section) IDs() []string {
	ids := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		ids = append(ids, r.RecordID())
	}
	return ids
}

// IDSet returns the record ids as a set.
func (s Section) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		set[r.RecordID()] = struct{}{}
	}
	return set
}

func BrandSection(collection string, brands []Brand) Section {
	records := make([]Record, len(brands))
	for i := range brands {
		records[i] = brands[i]
	}
	return Section{Key: SectionBrands, Collection: collection, CompareKeys: BrandCompareKeys, Records: records}
}

func CategorySection(collection string, categories []Category) Section {
	records := make([]Record, len(categories))
	for i := range categories {
		records[i] = categories[i]
	}
	return Section{Key: SectionCategories, Collection: collection, CompareKeys: CategoryCompareKeys, Records: records}
}

func ProductSection(collection string, products []Product) Section {
	records := make([]Record, len(products))
	for i := range products {
		records[i] = products[i]
	}
	return Section{Key: SectionProducts, Collection: collection, CompareKeys: ProductCompareKeys, Records: records}
}
