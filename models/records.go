package models

import "time"

// Record is a seed row that can be matched by id and written as a document.
type Record interface {
	RecordID() string
	// Fields returns the writable field map, excluding id and store-managed timestamps.
	Fields() map[string]interface{}
}

// Brand is a seed brand.
type Brand struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Name      string     `json:"name" yaml:"name" validate:"required"`
	ImageURL  string     `json:"imageURL" yaml:"imageURL"`
	IsActive  bool       `json:"isActive" yaml:"isActive"`
	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func (b Brand) RecordID() string { return b.ID }

func (b Brand) Fields() map[string]interface{} {
	return map[string]interface{}{
		"name":     b.Name,
		"imageURL": b.ImageURL,
		"isActive": b.IsActive,
	}
}

// Category is a seed category, optionally restricted to a set of brands.
type Category struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Name      string     `json:"name" yaml:"name" validate:"required"`
	ImageURL  string     `json:"imageURL" yaml:"imageURL"`
	BrandIDs  []string   `json:"brandIds" yaml:"brandIds"`
	IsActive  bool       `json:"isActive" yaml:"isActive"`
	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func (c Category) RecordID() string { return c.ID }

func (c Category) Fields() map[string]interface{} {
	brandIDs := c.BrandIDs
	if brandIDs == nil {
		brandIDs = []string{}
	}
	return map[string]interface{}{
		"name":     c.Name,
		"imageURL": c.ImageURL,
		"brandIds": brandIDs,
		"isActive": c.IsActive,
	}
}

// Product is a seed product.
type Product struct {
	ID          string     `json:"id" yaml:"id" validate:"required"`
	Name        string     `json:"name" yaml:"name" validate:"required"`
	Description string     `json:"description" yaml:"description"`
	NameLower   string     `json:"nameLower" yaml:"nameLower"`
	CategoryID  string     `json:"categoryId" yaml:"categoryId"`
	BrandID     string     `json:"brandId" yaml:"brandId"`
	Price       float64    `json:"price" yaml:"price" validate:"gte=0"`
	ImageURL    string     `json:"imageURL" yaml:"imageURL"`
	IsActive    bool       `json:"isActive" yaml:"isActive"`
	Keywords    []string   `json:"keywords" yaml:"keywords"`
	CreatedAt   *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func (p Product) RecordID() string { return p.ID }

func (p Product) Fields() map[string]interface{} {
	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return map[string]interface{}{
		"name":        p.Name,
		"description": p.Description,
		"nameLower":   p.NameLower,
		"categoryId":  p.CategoryID,
		"brandId":     p.BrandID,
		"price":       p.Price,
		"imageURL":    p.ImageURL,
		"isActive":    p.IsActive,
		"keywords":    keywords,
	}
}
