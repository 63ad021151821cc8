package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookRead is one entry of the append-only read log.
type BookRead struct {
	User      *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Timestamp time.Time           `bson:"timestamp" json:"timestamp"`
	Duration  float64             `bson:"duration" json:"duration"`
}

// ReadingProgress is a user's position in a book. A book holds at most one per user.
type ReadingProgress struct {
	User             primitive.ObjectID `bson:"user" json:"user"`
	CurrentPage      int                `bson:"currentPage" json:"currentPage"`
	LastRead         time.Time          `bson:"lastRead" json:"lastRead"`
	TotalReadingTime float64            `bson:"totalReadingTime" json:"totalReadingTime"`
	TotalPagesRead   int                `bson:"totalPagesRead" json:"totalPagesRead"`
	LastSessionStart *time.Time         `bson:"lastSessionStart,omitempty" json:"lastSessionStart,omitempty"`
}

type Book struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	Author          string             `bson:"author" json:"author"`
	Description     string             `bson:"description" json:"description"`
	PDFKey          string             `bson:"pdfKey" json:"-"`
	CoverKey        string             `bson:"coverKey,omitempty" json:"-"`
	PDFURL          string             `bson:"-" json:"pdfUrl"`
	CoverImageURL   string             `bson:"-" json:"coverImageUrl,omitempty"`
	Pages           int                `bson:"pages" json:"pages"`
	Duration        float64            `bson:"duration" json:"duration"`
	TodayReads      int                `bson:"todayReads" json:"todayReads"`
	TotalReads      int                `bson:"totalReads" json:"totalReads"`
	ReadBy          []BookRead         `bson:"readBy" json:"readBy,omitempty"`
	ReadingProgress []ReadingProgress  `bson:"readingProgress" json:"readingProgress,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SetURLs fills the API paths the client fetches the PDF and cover from.
func (b *Book) SetURLs() {
	base := "/api/books/" + b.ID.Hex()
	b.PDFURL = base + "/pdf"
	if b.CoverKey != "" {
		b.CoverImageURL = base + "/cover"
	}
}

// ProgressFor returns the progress entry for user, or nil.
func (b *Book) ProgressFor(user primitive.ObjectID) *ReadingProgress {
	for i := range b.ReadingProgress {
		if b.ReadingProgress[i].User == user {
			return &b.ReadingProgress[i]
		}
	}
	return nil
}

type BookStats struct {
	TotalReads    int     `json:"totalReads"`
	TodayReads    int     `json:"todayReads"`
	TotalDuration float64 `json:"totalDuration"`
	TotalPages    int     `json:"totalPages"`
}
