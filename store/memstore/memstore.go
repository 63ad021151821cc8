// Package memstore is an in-memory store with the same contract as store.DB.
// Tests across the module use it in place of MongoDB.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu            sync.Mutex
	categories    map[primitive.ObjectID]models.Category
	subcategories map[primitive.ObjectID]models.Subcategory
	writeups      map[primitive.ObjectID]models.Writeup
	books         map[primitive.ObjectID]models.Book
	users         map[primitive.ObjectID]models.User
	admins        map[primitive.ObjectID]models.Admin
	settings      *models.Settings

	// Fail, when set, is consulted by every method with the operation name;
	// a non-nil result is returned instead of running the operation.
	Fail func(ctx context.Context, op string) error
}

func New() *Store {
	return &Store{
		categories:    map[primitive.ObjectID]models.Category{},
		subcategories: map[primitive.ObjectID]models.Subcategory{},
		writeups:      map[primitive.ObjectID]models.Writeup{},
		books:         map[primitive.ObjectID]models.Book{},
		users:         map[primitive.ObjectID]models.User{},
		admins:        map[primitive.ObjectID]models.Admin{},
	}
}

func (s *Store) check(ctx context.Context, op string) error {
	if s.Fail != nil {
		if err := s.Fail(ctx, op); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, apperr.ErrTimeout)
		}
		return err
	}
	return nil
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Categories

func (s *Store) InsertCategory(ctx context.Context, c *models.Category) error {
	if err := s.check(ctx, "InsertCategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Slug == c.Slug {
			return fmt.Errorf("%w: duplicate slug %q", apperr.ErrConflict, c.Slug)
		}
	}
	c.ID = primitive.NewObjectID()
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) CategoryByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	if err := s.check(ctx, "CategoryByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.NotFound("category")
	}
	return &c, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	if err := s.check(ctx, "CategoryBySlug"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("category")
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	if err := s.check(ctx, "ListCategories"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CategoryIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	if err := s.check(ctx, "CategoryIDs"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(s.categories))
	for id := range s.categories {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	if err := s.check(ctx, "UpdateCategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.categories[c.ID]
	if !ok {
		return apperr.NotFound("category")
	}
	for id, other := range s.categories {
		if id != c.ID && other.Slug == c.Slug {
			return fmt.Errorf("%w: duplicate slug %q", apperr.ErrConflict, c.Slug)
		}
	}
	existing.Name, existing.Description, existing.Icon, existing.Slug = c.Name, c.Description, c.Icon, c.Slug
	existing.UpdatedAt = c.UpdatedAt
	s.categories[c.ID] = existing
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := s.check(ctx, "DeleteCategory"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return 0, nil
	}
	delete(s.categories, id)
	return 1, nil
}

func (s *Store) CountCategories(ctx context.Context) (int64, error) {
	if err := s.check(ctx, "CountCategories"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.categories)), nil
}

// Subcategories

func (s *Store) InsertSubcategory(ctx context.Context, sub *models.Subcategory) error {
	if err := s.check(ctx, "InsertSubcategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subcategories {
		if existing.Category == sub.Category && existing.Slug == sub.Slug {
			return fmt.Errorf("%w: duplicate slug %q", apperr.ErrConflict, sub.Slug)
		}
	}
	sub.ID = primitive.NewObjectID()
	s.subcategories[sub.ID] = *sub
	return nil
}

func (s *Store) SubcategoryByID(ctx context.Context, id primitive.ObjectID) (*models.Subcategory, error) {
	if err := s.check(ctx, "SubcategoryByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subcategories[id]
	if !ok {
		return nil, apperr.NotFound("subcategory")
	}
	return &sub, nil
}

func (s *Store) SubcategoryBySlug(ctx context.Context, slug string) (*models.Subcategory, error) {
	if err := s.check(ctx, "SubcategoryBySlug"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Subcategory
	for _, sub := range s.subcategories {
		if sub.Slug != slug {
			continue
		}
		if found == nil || sub.CreatedAt.Before(found.CreatedAt) {
			sub := sub
			found = &sub
		}
	}
	if found == nil {
		return nil, apperr.NotFound("subcategory")
	}
	return found, nil
}

func (s *Store) ListSubcategories(ctx context.Context, categoryID *primitive.ObjectID) ([]models.Subcategory, error) {
	if err := s.check(ctx, "ListSubcategories"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Subcategory{}
	for _, sub := range s.subcategories {
		if categoryID == nil || sub.Category == *categoryID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SubcategoryIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	if err := s.check(ctx, "SubcategoryIDs"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(s.subcategories))
	for id := range s.subcategories {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) UpdateSubcategory(ctx context.Context, sub *models.Subcategory) error {
	if err := s.check(ctx, "UpdateSubcategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subcategories[sub.ID]
	if !ok {
		return apperr.NotFound("subcategory")
	}
	for id, other := range s.subcategories {
		if id != sub.ID && other.Category == existing.Category && other.Slug == sub.Slug {
			return fmt.Errorf("%w: duplicate slug %q", apperr.ErrConflict, sub.Slug)
		}
	}
	existing.Name, existing.Description, existing.Icon, existing.Slug = sub.Name, sub.Description, sub.Icon, sub.Slug
	existing.UpdatedAt = sub.UpdatedAt
	s.subcategories[sub.ID] = existing
	return nil
}

func (s *Store) DeleteSubcategory(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := s.check(ctx, "DeleteSubcategory"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subcategories[id]; !ok {
		return 0, nil
	}
	delete(s.subcategories, id)
	return 1, nil
}

func (s *Store) DeleteSubcategoriesByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	if err := s.check(ctx, "DeleteSubcategoriesByCategory"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sub := range s.subcategories {
		if sub.Category == categoryID {
			delete(s.subcategories, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteSubcategoriesOutside(ctx context.Context, categoryIDs []primitive.ObjectID) (int64, error) {
	if err := s.check(ctx, "DeleteSubcategoriesOutside"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := idSet(categoryIDs)
	var n int64
	for id, sub := range s.subcategories {
		if !keep[sub.Category] {
			delete(s.subcategories, id)
			n++
		}
	}
	return n, nil
}

// Writeups

func (s *Store) InsertWriteup(ctx context.Context, w *models.Writeup) error {
	if err := s.check(ctx, "InsertWriteup"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.Tags == nil {
		w.Tags = []string{}
	}
	if w.ReadBy == nil {
		w.ReadBy = []models.WriteupRead{}
	}
	w.ID = primitive.NewObjectID()
	s.writeups[w.ID] = copyWriteup(*w)
	return nil
}

func (s *Store) WriteupByID(ctx context.Context, id primitive.ObjectID) (*models.Writeup, error) {
	if err := s.check(ctx, "WriteupByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.writeups[id]
	if !ok {
		return nil, apperr.NotFound("writeup")
	}
	w = copyWriteup(w)
	return &w, nil
}

func (s *Store) ListWriteups(ctx context.Context, q store.WriteupQuery) ([]models.Writeup, error) {
	if err := s.check(ctx, "ListWriteups"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Writeup{}
	for _, w := range s.writeups {
		if matchWriteup(w, q) {
			w = copyWriteup(w)
			w.ReadBy = nil
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) SearchWriteups(ctx context.Context, text string, limit int64) ([]models.Writeup, error) {
	if err := s.check(ctx, "SearchWriteups"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(text)
	out := []models.Writeup{}
	scores := map[primitive.ObjectID]int{}
	for _, w := range s.writeups {
		if matchWriteup(w, store.WriteupQuery{PublishedOnly: true, Text: text}) {
			w = copyWriteup(w)
			w.ReadBy = nil
			scores[w.ID] = store.SearchScore(w, needle)
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if si, sj := scores[out[i].ID], scores[out[j].ID]; si != sj {
			return si > sj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateWriteup(ctx context.Context, w *models.Writeup) error {
	if err := s.check(ctx, "UpdateWriteup"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.writeups[w.ID]
	if !ok {
		return apperr.NotFound("writeup")
	}
	existing.Title, existing.Description, existing.Content = w.Title, w.Description, w.Content
	existing.Category, existing.Subcategory = w.Category, w.Subcategory
	existing.Difficulty, existing.Platform, existing.PlatformURL = w.Difficulty, w.Platform, w.PlatformURL
	existing.Bounty = w.Bounty
	existing.Tags = append([]string{}, w.Tags...)
	existing.IsPublished, existing.IsFeatured = w.IsPublished, w.IsFeatured
	existing.UpdatedAt = w.UpdatedAt
	s.writeups[w.ID] = existing
	return nil
}

func (s *Store) DeleteWriteup(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := s.check(ctx, "DeleteWriteup"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.writeups[id]; !ok {
		return 0, nil
	}
	delete(s.writeups, id)
	return 1, nil
}

func (s *Store) DeleteWriteups(ctx context.Context, q store.WriteupQuery) (int64, error) {
	if err := s.check(ctx, "DeleteWriteups"); err != nil {
		return 0, err
	}
	if !q.Scoped() {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, w := range s.writeups {
		if matchWriteup(w, q) {
			delete(s.writeups, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteOrphanWriteups(ctx context.Context, categoryIDs, subcategoryIDs []primitive.ObjectID) (int64, error) {
	if err := s.check(ctx, "DeleteOrphanWriteups"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cats, subs := idSet(categoryIDs), idSet(subcategoryIDs)
	var n int64
	for id, w := range s.writeups {
		if !cats[w.Category] || (w.Subcategory != nil && !subs[*w.Subcategory]) {
			delete(s.writeups, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) RecordWriteupRead(ctx context.Context, id, user primitive.ObjectID, at time.Time) (int, bool, error) {
	if err := s.check(ctx, "RecordWriteupRead"); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.writeups[id]
	if !ok {
		return 0, false, apperr.NotFound("writeup")
	}
	if w.ReadBySet(user) {
		return w.Reads, false, nil
	}
	w.ReadBy = append(w.ReadBy, models.WriteupRead{User: user, Timestamp: at})
	w.Reads++
	w.TodayReads++
	s.writeups[id] = w
	return w.Reads, true, nil
}

func (s *Store) ResetWriteupTodayReads(ctx context.Context) (int64, error) {
	if err := s.check(ctx, "ResetWriteupTodayReads"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, w := range s.writeups {
		if w.TodayReads > 0 {
			w.TodayReads = 0
			s.writeups[id] = w
			n++
		}
	}
	return n, nil
}

func (s *Store) CountWriteups(ctx context.Context) (int64, error) {
	if err := s.check(ctx, "CountWriteups"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.writeups)), nil
}

func (s *Store) SumWriteupReads(ctx context.Context) (int64, error) {
	if err := s.check(ctx, "SumWriteupReads"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, w := range s.writeups {
		total += int64(w.Reads)
	}
	return total, nil
}

func matchWriteup(w models.Writeup, q store.WriteupQuery) bool {
	if q.PublishedOnly && !w.IsPublished {
		return false
	}
	if q.Scoped() {
		inScope := q.CategoryID != nil && w.Category == *q.CategoryID
		if !inScope && w.Subcategory != nil {
			inScope = idSet(q.SubcategoryIDs)[*w.Subcategory]
		}
		if !inScope {
			return false
		}
	}
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		hit := strings.Contains(strings.ToLower(w.Title), needle) ||
			strings.Contains(strings.ToLower(w.Content), needle) ||
			strings.Contains(strings.ToLower(w.Description), needle)
		for _, tag := range w.Tags {
			hit = hit || strings.Contains(strings.ToLower(tag), needle)
		}
		if !hit {
			return false
		}
	}
	return true
}

func copyWriteup(w models.Writeup) models.Writeup {
	w.Tags = append([]string{}, w.Tags...)
	w.ReadBy = append([]models.WriteupRead{}, w.ReadBy...)
	return w
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]bool {
	set := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
