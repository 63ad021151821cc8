package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/middleware"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/realtime"
	"github.com/kevinaaaquil/writeups/service"
	"github.com/kevinaaaquil/writeups/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	seedEmail    = "root@example.com"
	seedPassword = "bootstrap-pass"
)

// memObjects is an in-memory ObjectStorage.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	n       int
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Upload(_ context.Context, prefix, name string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	key := fmt.Sprintf("%s%d-%s", prefix, m.n, name)
	m.objects[key] = data
	m.types[key] = contentType
	return key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) GetObject(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), m.types[key], nil
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type testApp struct {
	handler  http.Handler
	store    *memstore.Store
	settings *service.SettingsService
	objects  *memObjects
	hub      *realtime.Hub
}

func newApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	a := &testApp{store: memstore.New(), objects: newMemObjects(), hub: realtime.NewHub()}
	a.settings = service.NewSettingsService(a.store)
	require.NoError(t, a.settings.Load(ctx))

	tokens := auth.NewTokens("handler-test-secret")
	accounts := service.NewAccountService(a.store, tokens, a.settings, a.hub,
		service.AdminSeed{Email: seedEmail, Password: seedPassword, Name: "Root"})
	guard := middleware.NewGuard(tokens, accounts, WriteError)

	a.handler = NewRouter(Deps{
		Guard:     guard,
		Content:   service.NewContentService(a.store),
		Books:     service.NewBookService(a.store, a.objects, a.settings, time.Second),
		Settings:  a.settings,
		Accounts:  accounts,
		Stats:     service.NewStatsService(a.store),
		MaxUpload: 60 << 20,
	})
	return a
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		rd = strings.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"email": seedEmail, "password": seedPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess struct{ Token string }
	decode(t, rec, &sess)
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

func (a *testApp) userToken(t *testing.T, name string) (string, primitive.ObjectID) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "Sup3rSecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess struct {
		Token string
		User  models.User
	}
	decode(t, rec, &sess)
	return sess.Token, sess.User.ID
}

func (a *testApp) createCategory(t *testing.T, admin, name string) models.Category {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/categories", admin, map[string]string{"name": name, "description": name + " bugs"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c models.Category
	decode(t, rec, &c)
	return c
}

func (a *testApp) createWriteup(t *testing.T, admin string, category primitive.ObjectID, sub *primitive.ObjectID, title string) models.Writeup {
	t.Helper()
	body := map[string]interface{}{
		"title": title, "description": "desc", "content": "content",
		"category": category.Hex(), "difficulty": "Medium",
	}
	if sub != nil {
		body["subcategory"] = sub.Hex()
	}
	rec := a.do(t, http.MethodPost, "/api/writeups", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var wu models.Writeup
	decode(t, rec, &wu)
	return wu
}

func TestHealthAndRoot(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/health", "", nil).Code)
	rec := a.do(t, http.MethodGet, "/", "", nil)
	assert.Contains(t, rec.Body.String(), "welcome")
}

func TestAuthErrors(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Please authenticate."}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid token."}`, rec.Body.String())

	user, _ := a.userToken(t, "hunter")
	rec = a.do(t, http.MethodPost, "/api/categories", user, map[string]string{"name": "XSS", "description": "d"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "hunter@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid email or password"}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeForUserAndAdmin(t *testing.T) {
	a := newApp(t)
	user, id := a.userToken(t, "hunter")
	rec := a.do(t, http.MethodGet, "/api/auth/me", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct{ User models.User }
	decode(t, rec, &body)
	assert.Equal(t, id, body.User.ID)

	admin := a.adminToken(t)
	rec = a.do(t, http.MethodGet, "/api/admin/me", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), seedEmail)
}

func TestCategoryLifecycle(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)

	cat := a.createCategory(t, admin, "Web Security")
	assert.Equal(t, "web-security", cat.Slug)

	rec := a.do(t, http.MethodPost, "/api/categories", admin, map[string]string{"name": "web security", "description": "dup"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/categories/"+cat.ID.Hex()+"/subcategories", admin, map[string]string{"name": "XSS", "description": "x"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub models.Subcategory
	decode(t, rec, &sub)

	a.createWriteup(t, admin, cat.ID, &sub.ID, "Stored XSS")
	a.createWriteup(t, admin, cat.ID, nil, "CSRF")

	rec = a.do(t, http.MethodGet, "/api/categories/"+cat.ID.Hex()+"/subcategories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []models.Subcategory
	decode(t, rec, &subs)
	assert.Len(t, subs, 1)

	rec = a.do(t, http.MethodDelete, "/api/categories/"+cat.ID.Hex(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var del struct{ Deleted service.DeleteReport }
	decode(t, rec, &del)
	assert.Equal(t, service.DeleteReport{Subcategories: 1, Writeups: 2}, del.Deleted)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/categories/"+cat.ID.Hex(), "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/api/categories/"+primitive.NewObjectID().Hex(), admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/categories/not-an-id", "", nil).Code)
}

func TestSubcategoryRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	cat := a.createCategory(t, admin, "Mobile")

	rec := a.do(t, http.MethodPost, "/api/subcategories", admin, map[string]string{"name": "Android", "description": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/subcategories", admin, map[string]string{"name": "Android", "description": "a", "category": cat.ID.Hex()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub models.Subcategory
	decode(t, rec, &sub)
	assert.Equal(t, "android", sub.Slug)

	rec = a.do(t, http.MethodPut, "/api/subcategories/"+sub.ID.Hex(), admin, map[string]string{"name": "Android Apps"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &sub)
	assert.Equal(t, "android-apps", sub.Slug)

	rec = a.do(t, http.MethodGet, "/api/subcategories?category="+cat.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []models.Subcategory
	decode(t, rec, &subs)
	assert.Len(t, subs, 1)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/subcategories/"+sub.ID.Hex(), admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/subcategories/"+sub.ID.Hex(), "", nil).Code)
}

func TestWriteupRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	cat := a.createCategory(t, admin, "Web")
	wu := a.createWriteup(t, admin, cat.ID, nil, "SSRF to RCE")

	rec := a.do(t, http.MethodPut, "/api/writeups/"+wu.ID.Hex(), admin, map[string]interface{}{"isPublished": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/writeups/"+wu.ID.Hex(), "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/writeups/"+wu.ID.Hex(), admin, nil).Code)

	var list []models.Writeup
	decode(t, a.do(t, http.MethodGet, "/api/writeups", "", nil), &list)
	assert.Empty(t, list)
	decode(t, a.do(t, http.MethodGet, "/api/writeups/all", admin, nil), &list)
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/writeups/all", "", nil).Code)

	a.do(t, http.MethodPut, "/api/writeups/"+wu.ID.Hex(), admin, map[string]interface{}{"isPublished": true})
	decode(t, a.do(t, http.MethodGet, "/api/writeups/category/web", "", nil), &list)
	assert.Len(t, list, 1)
	decode(t, a.do(t, http.MethodGet, "/api/writeups/search?query=ssrf", "", nil), &list)
	assert.Len(t, list, 1)
	decode(t, a.do(t, http.MethodGet, "/api/writeups/recent", "", nil), &list)
	assert.Len(t, list, 1)

	rec = a.do(t, http.MethodPost, "/api/writeups", admin, map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var verr struct{ Errors []string }
	decode(t, rec, &verr)
	assert.NotEmpty(t, verr.Errors)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/writeups/"+wu.ID.Hex(), admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/api/writeups/"+wu.ID.Hex(), admin, nil).Code)
}

func TestWriteupReadIsCountedOncePerUser(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	cat := a.createCategory(t, admin, "Web")
	wu := a.createWriteup(t, admin, cat.ID, nil, "IDOR")
	alice, _ := a.userToken(t, "alice")
	bob, _ := a.userToken(t, "bob")

	read := func(token string) service.ReadResult {
		rec := a.do(t, http.MethodPost, "/api/writeups/"+wu.ID.Hex()+"/read", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res service.ReadResult
		decode(t, rec, &res)
		return res
	}
	assert.Equal(t, service.ReadResult{Reads: 1, Counted: true}, read(alice))
	assert.Equal(t, service.ReadResult{Reads: 1, Counted: false}, read(alice))
	assert.Equal(t, service.ReadResult{Reads: 2, Counted: true}, read(bob))

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/api/writeups/"+wu.ID.Hex()+"/read", admin, nil).Code)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, field+".bin"))
		h.Set("Content-Type", f[0])
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testApp) createBook(t *testing.T, admin string) models.Book {
	t.Helper()
	body, ct := multipartBody(t,
		map[string]string{"title": "Web Hacking 101", "author": "Peter Yaworski", "pages": "250"},
		map[string][2]string{"pdf": {"application/pdf", "%PDF-1.4 fake"}, "coverImage": {"image/png", "png-bytes"}},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/books", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book models.Book
	decode(t, rec, &book)
	return book
}

func TestBookCatalogue(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	book := a.createBook(t, admin)
	assert.Equal(t, 250, book.Pages)
	assert.Equal(t, "/api/books/"+book.ID.Hex()+"/pdf", book.PDFURL)
	assert.Equal(t, 2, a.objects.count())

	rec := a.do(t, http.MethodGet, "/api/books/"+book.ID.Hex()+"/cover", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/books/"+book.ID.Hex()+"/pdf", "", nil).Code)
	user, _ := a.userToken(t, "reader")
	rec = a.do(t, http.MethodGet, "/api/books/"+book.ID.Hex()+"/pdf", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	var books []models.Book
	decode(t, a.do(t, http.MethodGet, "/api/books/search?query=yaworski", "", nil), &books)
	assert.Len(t, books, 1)

	body, ct := multipartBody(t, map[string]string{"title": "Web Hacking 102"}, nil)
	req := httptest.NewRequest(http.MethodPut, "/api/books/"+book.ID.Hex(), body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Web Hacking 102")

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/books/"+book.ID.Hex(), admin, nil).Code)
	assert.Equal(t, 0, a.objects.count())
}

func TestBookCreateRequiresPDF(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	body, ct := multipartBody(t, map[string]string{"title": "No file", "author": "Nobody"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/books", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pdf file is required")
}

func TestReadingProgress(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	book := a.createBook(t, admin)
	user, _ := a.userToken(t, "reader")
	path := "/api/books/" + book.ID.Hex() + "/progress"

	rec := a.do(t, http.MethodGet, path, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"progress":null,"message":"No reading progress found"}`, rec.Body.String())

	for _, page := range []int{3, 9} {
		rec = a.do(t, http.MethodPost, path, user, map[string]interface{}{"currentPage": page, "totalReadingTime": 60})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	var stats struct {
		ReadingStats struct{ CurrentPage int } `json:"readingStats"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 9, stats.ReadingStats.CurrentPage)

	for _, bad := range []string{`{"currentPage":0}`, `{"currentPage":"abc"}`} {
		rec = a.do(t, http.MethodPost, path, user, bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	var got struct{ Progress models.ReadingProgress }
	decode(t, a.do(t, http.MethodGet, path, user, nil), &got)
	assert.Equal(t, 9, got.Progress.CurrentPage)

	stored, err := a.store.BookByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ReadingProgress, 1)

	rec = a.do(t, http.MethodPost, "/api/books/"+primitive.NewObjectID().Hex()+"/progress", user, map[string]int{"currentPage": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookReadsAndReset(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	book := a.createBook(t, admin)
	user, _ := a.userToken(t, "reader")

	a.do(t, http.MethodPost, "/api/books/"+book.ID.Hex()+"/reads", "", map[string]float64{"duration": 5})
	rec := a.do(t, http.MethodPost, "/api/books/"+book.ID.Hex()+"/reads", user, map[string]float64{"duration": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var counters struct {
		ReadsCount int `json:"readsCount"`
		TodayReads int `json:"todayReads"`
	}
	decode(t, rec, &counters)
	assert.Equal(t, 2, counters.ReadsCount)
	assert.Equal(t, 2, counters.TodayReads)

	rec = a.do(t, http.MethodPost, "/api/books/reset-today-reads", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"booksReset":1`)

	a.do(t, http.MethodPost, "/api/books/"+book.ID.Hex()+"/reads", "", nil)
	a.store.Fail = func(_ context.Context, op string) error {
		if strings.HasPrefix(op, "ResetBookTodayReads:") {
			return fmt.Errorf("write conflict")
		}
		return nil
	}
	rec = a.do(t, http.MethodPost, "/api/books/reset-today-reads", admin, nil)
	assert.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
}

func TestSettingsRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)

	rec := a.do(t, http.MethodGet, "/api/settings/public", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "contactEmail")

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/admin/settings", "", nil).Code)

	rec = a.do(t, http.MethodPut, "/api/admin/settings", admin, map[string]interface{}{
		"siteName": "", "maxFileSize": 0, "appearance": map[string]string{"theme": "neon"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verr struct{ Errors []string }
	decode(t, rec, &verr)
	assert.GreaterOrEqual(t, len(verr.Errors), 3)
	assert.Equal(t, "CTF Writeups Platform", a.settings.Current().SiteName)

	// security options live under "security"; a flat key is refused, not dropped
	rec = a.do(t, http.MethodPut, "/api/admin/settings", admin, map[string]interface{}{"maxLoginAttempts": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown setting")
	assert.NotEqual(t, 1, a.settings.Current().Security.MaxLoginAttempts)

	rec = a.do(t, http.MethodPut, "/api/settings", admin, map[string]interface{}{"siteName": "Bounty Notes"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Bounty Notes", a.settings.Current().SiteName)
}

func TestMaintenanceModeGate(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)

	rec := a.do(t, http.MethodPut, "/api/admin/settings", admin, map[string]interface{}{"maintenanceMode": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/writeups", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maintenanceMode":true`)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/admin/settings", admin, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/health", "", nil).Code)

	a.do(t, http.MethodPut, "/api/admin/settings", admin, map[string]interface{}{"maintenanceMode": false, "enableUserRegistration": false})
	rec = a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "late", "email": "late@example.com", "password": "Sup3rSecret"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBlockUser(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	user, id := a.userToken(t, "hunter")

	rec := a.do(t, http.MethodPatch, "/api/admin/users/"+id.Hex()+"/block", admin, map[string]bool{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/auth/me", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body struct {
		Error   string
		Blocked bool
	}
	decode(t, rec, &body)
	assert.True(t, body.Blocked)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPatch, "/api/admin/users/"+id.Hex()+"/block", admin, map[string]string{}).Code)

	var users []models.User
	decode(t, a.do(t, http.MethodGet, "/api/admin/users", admin, nil), &users)
	require.Len(t, users, 1)
	assert.False(t, users[0].IsActive)
}

func TestAccountSelfService(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	user, id := a.userToken(t, "hunter")

	rec := a.do(t, http.MethodGet, "/api/auth/verify", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"valid":true`)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/api/auth/verify", admin, nil).Code)

	rec = a.do(t, http.MethodPut, "/api/auth/update-profile", user, map[string]interface{}{
		"username": "h4cker", "bio": "mobile", "skills": []string{"idor"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prof struct{ User models.User }
	decode(t, rec, &prof)
	assert.Equal(t, "h4cker", prof.User.Username)
	assert.Equal(t, []string{"idor"}, prof.User.Profile.Skills)

	rec = a.do(t, http.MethodPut, "/api/auth/change-password", user, map[string]string{
		"currentPassword": "wrong", "newPassword": "N3wSecretPass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Current password is incorrect")
	rec = a.do(t, http.MethodPut, "/api/auth/change-password", user, map[string]string{
		"currentPassword": "Sup3rSecret", "newPassword": "N3wSecretPass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "hunter@example.com", "password": "N3wSecretPass"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// status toggles, and a blocked user can still ask for its status
	rec = a.do(t, http.MethodPatch, "/api/admin/users/"+id.Hex()+"/status", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/api/auth/verify", user, nil).Code)
	rec = a.do(t, http.MethodGet, "/api/auth/status", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"isActive":false}`, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/auth/status", "", nil).Code)

	a.do(t, http.MethodPatch, "/api/admin/users/"+id.Hex()+"/status", admin, nil)
	assert.JSONEq(t, `{"isActive":true}`, a.do(t, http.MethodGet, "/api/auth/status", user, nil).Body.String())
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPatch, "/api/admin/users/"+id.Hex()+"/status", user, nil).Code)
}

func TestAdminSetup(t *testing.T) {
	a := newApp(t)
	body := map[string]string{"email": "first@example.com", "password": "Sup3rSecret", "name": "First"}
	rec := a.do(t, http.MethodPost, "/api/admin/setup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body["email"] = "second@example.com"
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/api/admin/setup", "", body).Code)
}

func TestStatsRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	cat := a.createCategory(t, admin, "Web")
	a.createWriteup(t, admin, cat.ID, nil, "Open redirect")

	var overview service.Overview
	decode(t, a.do(t, http.MethodGet, "/api/stats", "", nil), &overview)
	assert.Equal(t, int64(1), overview.TotalWriteups)
	assert.Equal(t, int64(1), overview.TotalCategories)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/admin/analytics/users", admin, nil).Code)
	rec := a.do(t, http.MethodPost, "/api/admin/maintenance/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":{"subcategories":0,"writeups":0}}`, rec.Body.String())
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	WriteError(rec, req, fmt.Errorf("mongo: connection refused on 10.0.0.3"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Something went wrong."}`, rec.Body.String())

	SetDebug(true)
	defer SetDebug(false)
	rec = httptest.NewRecorder()
	WriteError(rec, req, fmt.Errorf("mongo: connection refused"))
	assert.Contains(t, rec.Body.String(), `"detail":"mongo: connection refused"`)
}
