package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testDB connects to MONGODB_TEST_URI and gives each test its own database.
func testDB(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	name := fmt.Sprintf("writeups_test_%d", time.Now().UnixNano())
	db, err := NewMongoDB(ctx, uri, name, time.Second)
	require.NoError(t, err)
	require.NoError(t, db.EnsureIndexes(ctx))
	t.Cleanup(func() {
		_ = db.Database.Drop(context.Background())
		_ = db.Disconnect(context.Background())
	})
	return db
}

func TestMongoCategorySlugIsUnique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertCategory(ctx, &models.Category{Name: "Web", Slug: "web"}))
	err := db.InsertCategory(ctx, &models.Category{Name: "web", Slug: "web"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = db.CategoryByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMongoProgressKeepsOneEntryPerUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	book := &models.Book{Title: "T", Author: "A", PDFKey: "books/pdf/x.pdf"}
	require.NoError(t, db.InsertBook(ctx, book))

	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		for _, u := range []primitive.ObjectID{alice, bob} {
			wg.Add(1)
			go func(u primitive.ObjectID, page int) {
				defer wg.Done()
				assert.NoError(t, db.SaveProgress(ctx, book.ID, ProgressUpdate{User: u, CurrentPage: page, At: time.Now()}))
			}(u, i)
		}
	}
	wg.Wait()
	require.NoError(t, db.SaveProgress(ctx, book.ID, ProgressUpdate{User: alice, CurrentPage: 9, At: time.Now()}))

	got, err := db.BookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, got.ReadingProgress, 2)
	assert.Equal(t, 9, got.ProgressFor(alice).CurrentPage)

	err = db.SaveProgress(ctx, primitive.NewObjectID(), ProgressUpdate{User: alice, CurrentPage: 1, At: time.Now()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMongoWriteupReadDedup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	w := &models.Writeup{Title: "IDOR", Category: primitive.NewObjectID(), IsPublished: true}
	require.NoError(t, db.InsertWriteup(ctx, w))

	user := primitive.NewObjectID()
	reads, counted, err := db.RecordWriteupRead(ctx, w.ID, user, time.Now())
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, 1, reads)

	reads, counted, err = db.RecordWriteupRead(ctx, w.ID, user, time.Now())
	require.NoError(t, err)
	assert.False(t, counted)
	assert.Equal(t, 1, reads)

	reads, _, err = db.RecordWriteupRead(ctx, w.ID, primitive.NewObjectID(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, reads)
}

func TestMongoSearchRanksBeforeLimit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	category := primitive.NewObjectID()

	titleHit := &models.Writeup{Title: "OAuth token theft", Category: category, IsPublished: true, CreatedAt: base}
	require.NoError(t, db.InsertWriteup(ctx, titleHit))
	tagHit := &models.Writeup{Title: "x", Tags: []string{"oauth"}, Category: category, IsPublished: true, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, db.InsertWriteup(ctx, tagHit))
	for i := 0; i < 55; i++ {
		w := &models.Writeup{Title: "misc", Content: "oauth", Category: category, IsPublished: true,
			CreatedAt: base.Add(time.Duration(i+2) * time.Hour)}
		require.NoError(t, db.InsertWriteup(ctx, w))
	}
	draft := &models.Writeup{Title: "OAuth draft", Category: category, CreatedAt: base.Add(1000 * time.Hour)}
	require.NoError(t, db.InsertWriteup(ctx, draft))

	got, err := db.SearchWriteups(ctx, "OAUTH", 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, titleHit.ID, got[0].ID)
	assert.Equal(t, tagHit.ID, got[1].ID)
	for _, w := range got {
		assert.NotEqual(t, draft.ID, w.ID)
	}
}

func TestMongoSettingsDefaultsAreUpserted(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	st, err := db.LoadSettings(ctx, models.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "CTF Writeups Platform", st.SiteName)

	st.SiteName = "Bounty Notes"
	require.NoError(t, db.SaveSettings(ctx, st))
	again, err := db.LoadSettings(ctx, models.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "Bounty Notes", again.SiteName)
}
