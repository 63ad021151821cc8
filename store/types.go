package store

import (
	"regexp"
	"strings"
	"time"

	"github.com/kevinaaaquil/writeups/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WriteupQuery selects writeups. CategoryID and SubcategoryIDs are OR-ed together.
type WriteupQuery struct {
	PublishedOnly  bool
	CategoryID     *primitive.ObjectID
	SubcategoryIDs []primitive.ObjectID
	// Text is matched as a case-insensitive substring of title, content, description or any tag.
	Text  string
	Limit int64
}

// Scoped reports whether the query restricts by category or subcategory.
func (q WriteupQuery) Scoped() bool {
	return q.CategoryID != nil || len(q.SubcategoryIDs) > 0
}

func (q WriteupQuery) filter() bson.M {
	f := bson.M{}
	if q.PublishedOnly {
		f["isPublished"] = true
	}
	var scope bson.A
	if q.CategoryID != nil {
		scope = append(scope, bson.M{"category": *q.CategoryID})
	}
	if len(q.SubcategoryIDs) > 0 {
		scope = append(scope, bson.M{"subcategory": bson.M{"$in": q.SubcategoryIDs}})
	}
	if len(scope) > 0 {
		f["$or"] = scope
	}
	if q.Text != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Text), Options: "i"}
		text := bson.A{
			bson.M{"title": rx},
			bson.M{"content": rx},
			bson.M{"description": rx},
			bson.M{"tags": rx},
		}
		if _, ok := f["$or"]; ok {
			f["$and"] = bson.A{bson.M{"$or": f["$or"]}, bson.M{"$or": text}}
			delete(f, "$or")
		} else {
			f["$or"] = text
		}
	}
	return f
}

// Search weights. A writeup scores the sum of the weights of the fields that contain the query.
const (
	scoreTitle       = 4
	scoreTag         = 3
	scoreDescription = 2
	scoreContent     = 1
)

// SearchScore ranks w against a lowercased needle with the same weights the
// Mongo search pipeline uses.
func SearchScore(w models.Writeup, needle string) int {
	score := 0
	if strings.Contains(strings.ToLower(w.Title), needle) {
		score += scoreTitle
	}
	for _, tag := range w.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			score += scoreTag
			break
		}
	}
	if strings.Contains(strings.ToLower(w.Description), needle) {
		score += scoreDescription
	}
	if strings.Contains(strings.ToLower(w.Content), needle) {
		score += scoreContent
	}
	return score
}

// ProgressUpdate is one user's reported position in a book.
type ProgressUpdate struct {
	User             primitive.ObjectID
	CurrentPage      int
	TotalReadingTime float64
	TotalPagesRead   int
	SessionStart     bool
	At               time.Time
}

// DayCount is a per-day bucket in the analytics series; Date is YYYY-MM-DD.
type DayCount struct {
	Date  string `bson:"_id" json:"date"`
	Count int    `bson:"count" json:"count"`
}

// ReconcileResult counts documents removed by an orphan sweep.
type ReconcileResult struct {
	Subcategories int64 `json:"subcategories"`
	Writeups      int64 `json:"writeups"`
}
