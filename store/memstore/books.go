package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *Store) InsertBook(ctx context.Context, book *models.Book) error {
	if err := s.check(ctx, "InsertBook"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	book.ID = primitive.NewObjectID()
	s.books[book.ID] = copyBook(*book)
	return nil
}

func (s *Store) ListBooks(ctx context.Context, text string) ([]models.Book, error) {
	if err := s.check(ctx, "ListBooks"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(text)
	out := []models.Book{}
	for _, b := range s.books {
		if needle != "" &&
			!strings.Contains(strings.ToLower(b.Title), needle) &&
			!strings.Contains(strings.ToLower(b.Author), needle) &&
			!strings.Contains(strings.ToLower(b.Description), needle) {
			continue
		}
		b.ReadBy, b.ReadingProgress = nil, nil
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	if err := s.check(ctx, "BookByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, apperr.NotFound("book")
	}
	b = copyBook(b)
	return &b, nil
}

func (s *Store) UpdateBookDetails(ctx context.Context, book *models.Book) error {
	if err := s.check(ctx, "UpdateBookDetails"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[book.ID]
	if !ok {
		return apperr.NotFound("book")
	}
	b.Title, b.Author, b.Description = book.Title, book.Author, book.Description
	b.PDFKey, b.CoverKey = book.PDFKey, book.CoverKey
	b.Pages, b.Duration, b.UpdatedAt = book.Pages, book.Duration, book.UpdatedAt
	s.books[book.ID] = b
	return nil
}

func (s *Store) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	if err := s.check(ctx, "DeleteBook"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, apperr.NotFound("book")
	}
	delete(s.books, id)
	return &b, nil
}

func (s *Store) SaveProgress(ctx context.Context, bookID primitive.ObjectID, u store.ProgressUpdate) error {
	if err := s.check(ctx, "SaveProgress"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[bookID]
	if !ok {
		return apperr.NotFound("book")
	}
	entry := b.ProgressFor(u.User)
	if entry == nil {
		b.ReadingProgress = append(b.ReadingProgress, models.ReadingProgress{User: u.User})
		entry = &b.ReadingProgress[len(b.ReadingProgress)-1]
	}
	entry.CurrentPage = u.CurrentPage
	entry.LastRead = u.At
	entry.TotalReadingTime = u.TotalReadingTime
	entry.TotalPagesRead = u.TotalPagesRead
	entry.LastSessionStart = nil
	if u.SessionStart {
		at := u.At
		entry.LastSessionStart = &at
	}
	b.UpdatedAt = u.At
	s.books[bookID] = b
	return nil
}

func (s *Store) IncrementBookReads(ctx context.Context, id primitive.ObjectID, read models.BookRead) (*models.Book, error) {
	if err := s.check(ctx, "IncrementBookReads"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, apperr.NotFound("book")
	}
	b.TotalReads++
	b.TodayReads++
	b.Duration += read.Duration
	b.ReadBy = append(b.ReadBy, read)
	s.books[id] = b
	out := models.Book{ID: b.ID, TotalReads: b.TotalReads, TodayReads: b.TodayReads, Duration: b.Duration}
	return &out, nil
}

func (s *Store) BooksWithTodayReads(ctx context.Context) ([]primitive.ObjectID, error) {
	if err := s.check(ctx, "BooksWithTodayReads"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []primitive.ObjectID{}
	for id, b := range s.books {
		if b.TodayReads > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids, nil
}

func (s *Store) ResetBookTodayReads(ctx context.Context, id primitive.ObjectID) error {
	if err := s.check(ctx, "ResetBookTodayReads:"+id.Hex()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return apperr.NotFound("book")
	}
	b.TodayReads = 0
	s.books[id] = b
	return nil
}

func copyBook(b models.Book) models.Book {
	b.ReadBy = append([]models.BookRead{}, b.ReadBy...)
	b.ReadingProgress = append([]models.ReadingProgress{}, b.ReadingProgress...)
	return b
}
