package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// progressAttempts bounds the update/push cycle when concurrent writers race on the same user entry.
const progressAttempts = 3

func (db *DB) InsertBook(ctx context.Context, book *models.Book) error {
	if book.ReadBy == nil {
		book.ReadBy = []models.BookRead{}
	}
	if book.ReadingProgress == nil {
		book.ReadingProgress = []models.ReadingProgress{}
	}
	res, err := db.Books().InsertOne(ctx, book, options.InsertOne())
	if err != nil {
		return translate(err)
	}
	book.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// ListBooks returns books newest first, optionally filtered by a case-insensitive
// match on title, author or description. Read logs and progress are not loaded.
func (db *DB) ListBooks(ctx context.Context, text string) ([]models.Book, error) {
	filter := bson.M{}
	if text != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"author": rx},
			bson.M{"description": rx},
		}
	}
	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetProjection(bson.M{"readBy": 0, "readingProgress": 0})
	cur, err := db.Books().Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	books := []models.Book{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, translate(err)
	}
	return books, nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	if err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book); err != nil {
		return nil, notFound(err, "book")
	}
	return &book, nil
}

// UpdateBookDetails stores the catalogue fields of book. Counters and progress are left untouched.
func (db *DB) UpdateBookDetails(ctx context.Context, book *models.Book) error {
	res, err := db.Books().UpdateOne(ctx, bson.M{"_id": book.ID}, bson.M{"$set": bson.M{
		"title":       book.Title,
		"author":      book.Author,
		"description": book.Description,
		"pdfKey":      book.PDFKey,
		"coverKey":    book.CoverKey,
		"pages":       book.Pages,
		"duration":    book.Duration,
		"updatedAt":   book.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("book")
	}
	return nil
}

// DeleteBook removes a book and returns the deleted document so its objects can be cleaned up.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	if err := db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book); err != nil {
		return nil, notFound(err, "book")
	}
	return &book, nil
}

// SaveProgress writes u into the user's progress entry, creating it when absent.
// Only that array element is touched, so concurrent updates for other users are preserved.
func (db *DB) SaveProgress(ctx context.Context, bookID primitive.ObjectID, u ProgressUpdate) error {
	set := bson.M{
		"readingProgress.$.currentPage":      u.CurrentPage,
		"readingProgress.$.lastRead":         u.At,
		"readingProgress.$.totalReadingTime": u.TotalReadingTime,
		"readingProgress.$.totalPagesRead":   u.TotalPagesRead,
		"updatedAt":                          u.At,
	}
	update := bson.M{"$set": set}
	if u.SessionStart {
		set["readingProgress.$.lastSessionStart"] = u.At
	} else {
		update["$unset"] = bson.M{"readingProgress.$.lastSessionStart": ""}
	}

	entry := models.ReadingProgress{
		User:             u.User,
		CurrentPage:      u.CurrentPage,
		LastRead:         u.At,
		TotalReadingTime: u.TotalReadingTime,
		TotalPagesRead:   u.TotalPagesRead,
	}
	if u.SessionStart {
		at := u.At
		entry.LastSessionStart = &at
	}

	for attempt := 0; attempt < progressAttempts; attempt++ {
		res, err := db.Books().UpdateOne(ctx, bson.M{"_id": bookID, "readingProgress.user": u.User}, update)
		if err != nil {
			return translate(err)
		}
		if res.MatchedCount > 0 {
			return nil
		}
		res, err = db.Books().UpdateOne(ctx,
			bson.M{"_id": bookID, "readingProgress.user": bson.M{"$ne": u.User}},
			bson.M{
				"$push": bson.M{"readingProgress": entry},
				"$set":  bson.M{"updatedAt": u.At},
			},
		)
		if err != nil {
			return translate(err)
		}
		if res.MatchedCount > 0 {
			return nil
		}
		n, err := db.Books().CountDocuments(ctx, bson.M{"_id": bookID})
		if err != nil {
			return translate(err)
		}
		if n == 0 {
			return apperr.NotFound("book")
		}
		// Another request created the entry between the two updates; retry the positional set.
	}
	return fmt.Errorf("save progress for book %s: %w", bookID.Hex(), apperr.ErrConflict)
}

// IncrementBookReads bumps both counters and appends to the read log in one update.
func (db *DB) IncrementBookReads(ctx context.Context, id primitive.ObjectID, read models.BookRead) (*models.Book, error) {
	var book models.Book
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"totalReads": 1, "todayReads": 1, "duration": 1})
	err := db.Books().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$inc":  bson.M{"totalReads": 1, "todayReads": 1, "duration": read.Duration},
		"$push": bson.M{"readBy": read},
	}, opts).Decode(&book)
	if err != nil {
		return nil, notFound(err, "book")
	}
	return &book, nil
}

// BooksWithTodayReads returns ids of books whose daily counter is non-zero.
func (db *DB) BooksWithTodayReads(ctx context.Context) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, db.Books(), bson.M{"todayReads": bson.M{"$gt": 0}})
}

func (db *DB) ResetBookTodayReads(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"todayReads": 0}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("book")
	}
	return nil
}
