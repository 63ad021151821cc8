package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxPDFBytes            = 50 << 20
	DefaultProgressTimeout = 10 * time.Second

	contentTypePDF = "application/pdf"
	pdfPrefix      = "books/pdf/"
	coverPrefix    = "books/covers/"
)

// BookStore is the persistence the book catalogue and progress tracker need.
type BookStore interface {
	InsertBook(ctx context.Context, book *models.Book) error
	ListBooks(ctx context.Context, text string) ([]models.Book, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	UpdateBookDetails(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	SaveProgress(ctx context.Context, bookID primitive.ObjectID, u store.ProgressUpdate) error
	IncrementBookReads(ctx context.Context, id primitive.ObjectID, read models.BookRead) (*models.Book, error)
	BooksWithTodayReads(ctx context.Context) ([]primitive.ObjectID, error)
	ResetBookTodayReads(ctx context.Context, id primitive.ObjectID) error
}

// ObjectStorage holds book PDFs and cover images. *S3Service implements it.
type ObjectStorage interface {
	Upload(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// SettingsSource exposes the current site settings.
type SettingsSource interface {
	Current() models.Settings
}

type BookService struct {
	store           BookStore
	objects         ObjectStorage
	settings        SettingsSource
	progressTimeout time.Duration
	loc             *time.Location
	now             func() time.Time
}

// NewBookService wires the tracker. objects may be nil, in which case file
// operations fail with apperr.ErrUnavailable.
func NewBookService(s BookStore, objects ObjectStorage, settings SettingsSource, progressTimeout time.Duration) *BookService {
	if progressTimeout <= 0 {
		progressTimeout = DefaultProgressTimeout
	}
	return &BookService{
		store:           s,
		objects:         objects,
		settings:        settings,
		progressTimeout: progressTimeout,
		loc:             time.Local,
		now:             time.Now,
	}
}

// ProgressInput is the raw progress report. Values are kept undecoded so that
// a non-numeric currentPage can be rejected while non-numeric totals become 0.
type ProgressInput struct {
	CurrentPage      json.RawMessage `json:"currentPage"`
	TotalReadingTime json.RawMessage `json:"totalReadingTime"`
	TotalPagesRead   json.RawMessage `json:"totalPagesRead"`
	IsSessionStart   bool            `json:"isSessionStart"`
}

type ReadCounters struct {
	TotalReads int     `json:"totalReads"`
	TodayReads int     `json:"todayReads"`
	Duration   float64 `json:"duration"`
}

type ResetFailure struct {
	BookID string `json:"bookId"`
	Error  string `json:"error"`
}

// ResetReport describes a daily reset run. Failed is empty on full success.
type ResetReport struct {
	Matched int            `json:"matched"`
	Reset   int            `json:"booksReset"`
	Failed  []ResetFailure `json:"failed"`
}

// GetProgress returns the user's progress in the book, or nil when there is none.
func (s *BookService) GetProgress(ctx context.Context, bookID string, user primitive.ObjectID) (*models.ReadingProgress, error) {
	oid, err := parseID(bookID, "book")
	if err != nil {
		return nil, err
	}
	book, err := s.store.BookByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	return book.ProgressFor(user), nil
}

// UpdateProgress overwrites the user's progress entry, creating it when absent.
// The write is bounded by the configured timeout.
func (s *BookService) UpdateProgress(ctx context.Context, bookID string, user primitive.ObjectID, in ProgressInput) (*models.ReadingProgress, error) {
	oid, err := parseID(bookID, "book")
	if err != nil {
		return nil, err
	}
	// A fractional page (a reader halfway down page 2 reports 2.5) is stored as the page it is on.
	page, ok := jsonNumber(in.CurrentPage)
	if !ok || page < 1 {
		return nil, apperr.Invalid("currentPage must be a number greater than or equal to 1")
	}
	readingTime, _ := jsonNumber(in.TotalReadingTime)
	pagesRead, _ := jsonNumber(in.TotalPagesRead)

	u := store.ProgressUpdate{
		User:             user,
		CurrentPage:      int(math.Floor(page)),
		TotalReadingTime: math.Max(readingTime, 0),
		TotalPagesRead:   int(math.Max(pagesRead, 0)),
		SessionStart:     in.IsSessionStart,
		At:               s.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.progressTimeout)
	defer cancel()
	if err := s.store.SaveProgress(ctx, oid, u); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperr.ErrTimeout) {
			err = fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
		}
		return nil, err
	}

	p := &models.ReadingProgress{
		User:             u.User,
		CurrentPage:      u.CurrentPage,
		LastRead:         u.At,
		TotalReadingTime: u.TotalReadingTime,
		TotalPagesRead:   u.TotalPagesRead,
	}
	if u.SessionStart {
		at := u.At
		p.LastSessionStart = &at
	}
	return p, nil
}

// jsonNumber reports the value of raw when it is a JSON number.
func jsonNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IncrementReads records one completed read. Every call counts; reads are not
// deduplicated per user.
func (s *BookService) IncrementReads(ctx context.Context, bookID string, user *primitive.ObjectID, duration float64) (ReadCounters, error) {
	oid, err := parseID(bookID, "book")
	if err != nil {
		return ReadCounters{}, err
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return ReadCounters{}, apperr.Invalid("duration must be a non-negative number")
	}
	book, err := s.store.IncrementBookReads(ctx, oid, models.BookRead{
		User:      user,
		Timestamp: s.now(),
		Duration:  duration,
	})
	if err != nil {
		return ReadCounters{}, err
	}
	return ReadCounters{TotalReads: book.TotalReads, TodayReads: book.TodayReads, Duration: book.Duration}, nil
}

// ResetTodayReads zeroes todayReads on every book that has a non-zero count.
// Books that fail are listed in the report and the rest still get reset.
func (s *BookService) ResetTodayReads(ctx context.Context) (ResetReport, error) {
	ids, err := s.store.BooksWithTodayReads(ctx)
	if err != nil {
		return ResetReport{}, err
	}
	report := ResetReport{Matched: len(ids), Failed: []ResetFailure{}}
	for _, id := range ids {
		if err := s.store.ResetBookTodayReads(ctx, id); err != nil {
			log.Error().Err(err).Str("book", id.Hex()).Msg("reset today reads failed")
			report.Failed = append(report.Failed, ResetFailure{BookID: id.Hex(), Error: err.Error()})
			continue
		}
		report.Reset++
	}
	return report, nil
}

// ComputeStats derives read statistics from the book's progress records.
func (s *BookService) ComputeStats(ctx context.Context, bookID string) (models.BookStats, error) {
	oid, err := parseID(bookID, "book")
	if err != nil {
		return models.BookStats{}, err
	}
	book, err := s.store.BookByID(ctx, oid)
	if err != nil {
		return models.BookStats{}, err
	}
	now := s.now().In(s.loc)
	stats := models.BookStats{
		TotalReads: len(book.ReadingProgress),
		TotalPages: book.Pages,
	}
	for _, p := range book.ReadingProgress {
		if sameDay(p.LastRead.In(s.loc), now) {
			stats.TodayReads++
		}
		stats.TotalDuration += p.TotalReadingTime
	}
	return stats, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type BookInput struct {
	Title       string  `json:"title" validate:"required,max=300"`
	Author      string  `json:"author" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Pages       int     `json:"pages" validate:"gte=0"`
	Duration    float64 `json:"duration" validate:"gte=0"`
}

type BookPatch struct {
	Title       *string `json:"title" validate:"omitempty,max=300"`
	Author      *string `json:"author" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Pages       *int    `json:"pages" validate:"omitempty,gte=0"`
}

// Upload is a file received from a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *BookService) List(ctx context.Context, query string) ([]models.Book, error) {
	books, err := s.store.ListBooks(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	for i := range books {
		books[i].SetURLs()
	}
	return books, nil
}

// Get returns the book without its read log and per-user progress.
func (s *BookService) Get(ctx context.Context, id string) (*models.Book, error) {
	oid, err := parseID(id, "book")
	if err != nil {
		return nil, err
	}
	book, err := s.store.BookByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	book.ReadBy, book.ReadingProgress = nil, nil
	book.SetURLs()
	return book, nil
}

func (s *BookService) Create(ctx context.Context, in BookInput, pdf *Upload, cover *Upload) (*models.Book, error) {
	in.Title, in.Author, in.Description = strings.TrimSpace(in.Title), strings.TrimSpace(in.Author), strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if pdf == nil {
		return nil, apperr.Invalid("pdf file is required")
	}
	if err := s.checkUploads(pdf, cover); err != nil {
		return nil, err
	}
	now := s.now()
	book := &models.Book{
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		Pages:       in.Pages,
		Duration:    in.Duration,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var err error
	if book.PDFKey, err = s.objects.Upload(ctx, pdfPrefix, pdf.Name, pdf.Body, contentTypePDF); err != nil {
		return nil, fmt.Errorf("upload pdf: %w", err)
	}
	if cover != nil {
		if book.CoverKey, err = s.objects.Upload(ctx, coverPrefix, cover.Name, cover.Body, cover.ContentType); err != nil {
			s.removeObjects(ctx, book.PDFKey)
			return nil, fmt.Errorf("upload cover: %w", err)
		}
	}
	if err := s.store.InsertBook(ctx, book); err != nil {
		s.removeObjects(ctx, book.PDFKey, book.CoverKey)
		return nil, err
	}
	book.SetURLs()
	return book, nil
}

// Update changes catalogue fields and optionally replaces the PDF or cover.
// Replaced objects are removed after the document is saved.
func (s *BookService) Update(ctx context.Context, id string, patch BookPatch, pdf *Upload, cover *Upload) (*models.Book, error) {
	trimPtr(patch.Title)
	trimPtr(patch.Author)
	trimPtr(patch.Description)
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	oid, err := parseID(id, "book")
	if err != nil {
		return nil, err
	}
	if pdf != nil || cover != nil {
		if err := s.checkUploads(pdf, cover); err != nil {
			return nil, err
		}
	}
	book, err := s.store.BookByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil && *patch.Title != "" {
		book.Title = *patch.Title
	}
	if patch.Author != nil && *patch.Author != "" {
		book.Author = *patch.Author
	}
	if patch.Description != nil {
		book.Description = *patch.Description
	}
	if patch.Pages != nil {
		book.Pages = *patch.Pages
	}

	var replaced, uploaded []string
	if pdf != nil {
		key, err := s.objects.Upload(ctx, pdfPrefix, pdf.Name, pdf.Body, contentTypePDF)
		if err != nil {
			return nil, fmt.Errorf("upload pdf: %w", err)
		}
		replaced, uploaded = append(replaced, book.PDFKey), append(uploaded, key)
		book.PDFKey = key
	}
	if cover != nil {
		key, err := s.objects.Upload(ctx, coverPrefix, cover.Name, cover.Body, cover.ContentType)
		if err != nil {
			s.removeObjects(ctx, uploaded...)
			return nil, fmt.Errorf("upload cover: %w", err)
		}
		replaced, uploaded = append(replaced, book.CoverKey), append(uploaded, key)
		book.CoverKey = key
	}
	book.UpdatedAt = s.now()
	if err := s.store.UpdateBookDetails(ctx, book); err != nil {
		s.removeObjects(ctx, uploaded...)
		return nil, err
	}
	s.removeObjects(ctx, replaced...)
	book.ReadBy, book.ReadingProgress = nil, nil
	book.SetURLs()
	return book, nil
}

func (s *BookService) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id, "book")
	if err != nil {
		return err
	}
	book, err := s.store.DeleteBook(ctx, oid)
	if err != nil {
		return err
	}
	s.removeObjects(ctx, book.PDFKey, book.CoverKey)
	return nil
}

// OpenPDF streams the book's PDF. The caller closes the reader.
func (s *BookService) OpenPDF(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return s.open(ctx, id, func(b *models.Book) string { return b.PDFKey })
}

// OpenCover streams the book's cover image. The caller closes the reader.
func (s *BookService) OpenCover(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return s.open(ctx, id, func(b *models.Book) string { return b.CoverKey })
}

func (s *BookService) open(ctx context.Context, id string, key func(*models.Book) string) (io.ReadCloser, string, error) {
	oid, err := parseID(id, "book")
	if err != nil {
		return nil, "", err
	}
	book, err := s.store.BookByID(ctx, oid)
	if err != nil {
		return nil, "", err
	}
	k := key(book)
	if k == "" {
		return nil, "", apperr.NotFound("file")
	}
	if s.objects == nil {
		return nil, "", fmt.Errorf("file storage not configured: %w", apperr.ErrUnavailable)
	}
	body, contentType, err := s.objects.GetObject(ctx, k)
	if err != nil {
		return nil, "", fmt.Errorf("get object: %w", err)
	}
	return body, contentType, nil
}

// checkUploads enforces the PDF size limit and the cover type and size limits from settings.
func (s *BookService) checkUploads(pdf, cover *Upload) error {
	if s.objects == nil {
		return fmt.Errorf("file storage not configured: %w", apperr.ErrUnavailable)
	}
	var msgs []string
	if pdf != nil {
		if pdf.ContentType != contentTypePDF {
			msgs = append(msgs, "pdf must be an application/pdf file")
		}
		if pdf.Size > MaxPDFBytes {
			msgs = append(msgs, "pdf must be at most 50 MB")
		}
	}
	if cover != nil {
		settings := s.settings.Current()
		if !allowedType(cover.ContentType, settings.AllowedFileTypes) {
			msgs = append(msgs, fmt.Sprintf("cover image type %q is not allowed", cover.ContentType))
		}
		if limit := int64(settings.MaxFileSize) << 20; cover.Size > limit {
			msgs = append(msgs, fmt.Sprintf("cover image must be at most %d MB", settings.MaxFileSize))
		}
	}
	if len(msgs) > 0 {
		return apperr.Invalid(msgs...)
	}
	return nil
}

func allowedType(contentType string, allowed []string) bool {
	if !strings.HasPrefix(contentType, "image/") {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, contentType) {
			return true
		}
	}
	return false
}

func (s *BookService) removeObjects(ctx context.Context, keys ...string) {
	if s.objects == nil {
		return
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := s.objects.Delete(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("failed to delete object")
		}
	}
}
