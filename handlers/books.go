package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/metrics"
	"github.com/kevinaaaquil/writeups/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// multipartMemory is how much of a multipart body is kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

type BooksHandler struct {
	Books    *service.BookService
	MaxBytes int64 // limit on a whole multipart request
}

func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Books.List(r.Context(), "")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Search(w http.ResponseWriter, r *http.Request) {
	books, err := h.Books.List(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, err := h.Books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, book)
}

// Create accepts a multipart form with the book fields, a "pdf" file and an
// optional "coverImage" file.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseForm(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer form.close()

	var in service.BookInput
	var msgs []string
	in.Title = form.value("title")
	in.Author = form.value("author")
	in.Description = form.value("description")
	if v := form.value("pages"); v != "" {
		if in.Pages, err = strconv.Atoi(v); err != nil {
			msgs = append(msgs, "pages must be a whole number")
		}
	}
	if v := form.value("duration"); v != "" {
		if in.Duration, err = strconv.ParseFloat(v, 64); err != nil {
			msgs = append(msgs, "duration must be a number")
		}
	}
	if len(msgs) > 0 {
		WriteError(w, r, apperr.Invalid(msgs...))
		return
	}
	pdf, cover, err := form.uploads()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	book, err := h.Books.Create(r.Context(), in, pdf, cover)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, book)
}

// Update changes the fields present in the multipart form and replaces the
// files that were sent.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseForm(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer form.close()

	var patch service.BookPatch
	patch.Title = form.optional("title")
	patch.Author = form.optional("author")
	patch.Description = form.optional("description")
	if v := form.optional("pages"); v != nil {
		pages, err := strconv.Atoi(*v)
		if err != nil {
			WriteError(w, r, apperr.Invalid("pages must be a whole number"))
			return
		}
		patch.Pages = &pages
	}
	pdf, cover, err := form.uploads()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	book, err := h.Books.Update(r.Context(), chi.URLParam(r, "id"), patch, pdf, cover)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Book updated successfully", "book": book})
}

func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Book deleted successfully!"})
}

// PDF streams the book file to an authenticated caller.
func (h *BooksHandler) PDF(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.Books.OpenPDF)
}

// Cover is public so it can be used directly as an img src.
func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.Books.OpenCover)
}

func (h *BooksHandler) stream(w http.ResponseWriter, r *http.Request, open func(context.Context, string) (io.ReadCloser, string, error)) {
	body, contentType, err := open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer body.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (h *BooksHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	progress, err := h.Books.GetProgress(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	msg := "Reading progress found"
	if progress == nil {
		msg = "No reading progress found"
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"progress": progress, "message": msg})
}

// UpdateProgress stores the caller's position in the book, replacing any earlier entry.
func (h *BooksHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req service.ProgressInput
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.ProgressUpdates.WithLabelValues("invalid").Inc()
		WriteError(w, r, err)
		return
	}
	progress, err := h.Books.UpdateProgress(r.Context(), chi.URLParam(r, "id"), p.ID, req)
	metrics.ProgressUpdates.WithLabelValues(progressOutcome(err)).Inc()
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Reading progress updated",
		"readingStats": map[string]interface{}{
			"currentPage":      progress.CurrentPage,
			"totalReadingTime": progress.TotalReadingTime,
			"totalPagesRead":   progress.TotalPagesRead,
		},
	})
}

func progressOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperr.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

type readRequest struct {
	Duration float64 `json:"duration"`
}

// Reads counts one read of the book. Anonymous reads are counted too.
func (h *BooksHandler) Reads(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	var user *primitive.ObjectID
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		user = &p.ID
	}
	counters, err := h.Books.IncrementReads(r.Context(), chi.URLParam(r, "id"), user, req.Duration)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Book reads count incremented",
		"readsCount": counters.TotalReads,
		"todayReads": counters.TodayReads,
		"duration":   counters.Duration,
	})
}

func (h *BooksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Books.ComputeStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// ResetTodayReads answers 207 when some books could not be reset.
func (h *BooksHandler) ResetTodayReads(w http.ResponseWriter, r *http.Request) {
	report, err := h.Books.ResetTodayReads(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	status, msg := http.StatusOK, "Today's reads reset successfully"
	if len(report.Failed) > 0 {
		status, msg = http.StatusMultiStatus, "Today's reads partially reset"
	}
	WriteJSON(w, status, map[string]interface{}{
		"message":    msg,
		"matched":    report.Matched,
		"booksReset": report.Reset,
		"failed":     report.Failed,
	})
}

type bookForm struct {
	form *multipart.Form
	open []multipart.File
}

func (h *BooksHandler) parseForm(w http.ResponseWriter, r *http.Request) (*bookForm, error) {
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Invalid("upload exceeds the maximum request size")
		}
		return nil, apperr.Invalid("failed to parse multipart form")
	}
	return &bookForm{form: r.MultipartForm}, nil
}

func (f *bookForm) value(key string) string {
	if v := f.form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (f *bookForm) optional(key string) *string {
	if v := f.form.Value[key]; len(v) > 0 {
		return &v[0]
	}
	return nil
}

func (f *bookForm) file(key string) (*service.Upload, error) {
	headers := f.form.File[key]
	if len(headers) == 0 {
		return nil, nil
	}
	hdr := headers[0]
	file, err := hdr.Open()
	if err != nil {
		return nil, err
	}
	f.open = append(f.open, file)
	return &service.Upload{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        file,
	}, nil
}

func (f *bookForm) uploads() (pdf, cover *service.Upload, err error) {
	if pdf, err = f.file("pdf"); err != nil {
		return nil, nil, err
	}
	if cover, err = f.file("coverImage"); err != nil {
		return nil, nil, err
	}
	return pdf, cover, nil
}

func (f *bookForm) close() {
	for _, file := range f.open {
		_ = file.Close()
	}
	_ = f.form.RemoveAll()
}
