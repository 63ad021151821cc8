package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
	DifficultyExpert = "Expert"
)

var Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

const DefaultBountyCurrency = "USD"

type Bounty struct {
	Amount      float64 `bson:"amount" json:"amount"`
	Currency    string  `bson:"currency" json:"currency"`
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
}

// WriteupRead records the first read of a writeup by a user.
type WriteupRead struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type Writeup struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Content     string              `bson:"content" json:"content"`
	Category    primitive.ObjectID  `bson:"category" json:"category"`
	Subcategory *primitive.ObjectID `bson:"subcategory,omitempty" json:"subcategory,omitempty"`
	Difficulty  string              `bson:"difficulty" json:"difficulty"`
	Platform    string              `bson:"platform,omitempty" json:"platform,omitempty"`
	PlatformURL string              `bson:"platformUrl,omitempty" json:"platformUrl,omitempty"`
	Bounty      Bounty              `bson:"bounty" json:"bounty"`
	Tags        []string            `bson:"tags" json:"tags"`
	Reads       int                 `bson:"reads" json:"reads"`
	TodayReads  int                 `bson:"todayReads" json:"todayReads"`
	ReadBy      []WriteupRead       `bson:"readBy" json:"readBy,omitempty"`
	IsPublished bool                `bson:"isPublished" json:"isPublished"`
	IsFeatured  bool                `bson:"isFeatured" json:"isFeatured"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// ReadBySet reports whether user has already been counted as a reader.
func (w *Writeup) ReadBySet(user primitive.ObjectID) bool {
	for _, r := range w.ReadBy {
		if r.User == user {
			return true
		}
	}
	return false
}
