package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultCategoryIcon = "🔒"

// Category is a top-level grouping of writeups. Subcategories and Writeups are
// filled from queries for responses and never stored on the document.
type Category struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name          string               `bson:"name" json:"name"`
	Description   string               `bson:"description" json:"description"`
	Icon          string               `bson:"icon" json:"icon"`
	Slug          string               `bson:"slug" json:"slug"`
	IsSubcategory bool                 `bson:"isSubcategory" json:"isSubcategory"`
	Parent        *primitive.ObjectID  `bson:"parent,omitempty" json:"parent,omitempty"`
	Subcategories []Subcategory        `bson:"-" json:"subcategories,omitempty"`
	Writeups      []primitive.ObjectID `bson:"-" json:"writeups,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Subcategory belongs to exactly one category; its slug is unique within that category.
type Subcategory struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description" json:"description"`
	Icon        string               `bson:"icon" json:"icon"`
	Category    primitive.ObjectID   `bson:"category" json:"category"`
	Slug        string               `bson:"slug" json:"slug"`
	Writeups    []primitive.ObjectID `bson:"-" json:"writeups,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}
