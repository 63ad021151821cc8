package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store"
	"github.com/kevinaaaquil/writeups/utils"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentStore is the persistence the content hierarchy needs. *store.DB implements it.
type ContentStore interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	InsertCategory(ctx context.Context, c *models.Category) error
	CategoryByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CategoryIDs(ctx context.Context) ([]primitive.ObjectID, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id primitive.ObjectID) (int64, error)

	InsertSubcategory(ctx context.Context, s *models.Subcategory) error
	SubcategoryByID(ctx context.Context, id primitive.ObjectID) (*models.Subcategory, error)
	SubcategoryBySlug(ctx context.Context, slug string) (*models.Subcategory, error)
	ListSubcategories(ctx context.Context, categoryID *primitive.ObjectID) ([]models.Subcategory, error)
	SubcategoryIDs(ctx context.Context) ([]primitive.ObjectID, error)
	UpdateSubcategory(ctx context.Context, s *models.Subcategory) error
	DeleteSubcategory(ctx context.Context, id primitive.ObjectID) (int64, error)
	DeleteSubcategoriesByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error)
	DeleteSubcategoriesOutside(ctx context.Context, categoryIDs []primitive.ObjectID) (int64, error)

	InsertWriteup(ctx context.Context, w *models.Writeup) error
	WriteupByID(ctx context.Context, id primitive.ObjectID) (*models.Writeup, error)
	ListWriteups(ctx context.Context, q store.WriteupQuery) ([]models.Writeup, error)
	SearchWriteups(ctx context.Context, text string, limit int64) ([]models.Writeup, error)
	UpdateWriteup(ctx context.Context, w *models.Writeup) error
	DeleteWriteup(ctx context.Context, id primitive.ObjectID) (int64, error)
	DeleteWriteups(ctx context.Context, q store.WriteupQuery) (int64, error)
	DeleteOrphanWriteups(ctx context.Context, categoryIDs, subcategoryIDs []primitive.ObjectID) (int64, error)
	RecordWriteupRead(ctx context.Context, id, user primitive.ObjectID, at time.Time) (int, bool, error)
	ResetWriteupTodayReads(ctx context.Context) (int64, error)
}

// ContentService owns categories, subcategories and writeups. A writeup's own
// category and subcategory fields are authoritative; listings are derived from them.
type ContentService struct {
	store ContentStore
	now   func() time.Time
}

func NewContentService(s ContentStore) *ContentService {
	return &ContentService{store: s, now: time.Now}
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
	Icon        string `json:"icon" validate:"max=32"`
}

// CategoryPatch holds the fields to change; nil fields keep their value.
type CategoryPatch struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Icon        *string `json:"icon" validate:"omitempty,max=32"`
}

// DeleteReport counts the dependents removed along with a category or subcategory.
type DeleteReport struct {
	Subcategories int64 `json:"subcategories"`
	Writeups      int64 `json:"writeups"`
}

func (s *ContentService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.Name, in.Description, in.Icon = strings.TrimSpace(in.Name), strings.TrimSpace(in.Description), strings.TrimSpace(in.Icon)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	slug, err := s.categorySlug(ctx, in.Name, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	c := &models.Category{
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		Slug:        slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Icon == "" {
		c.Icon = models.DefaultCategoryIcon
	}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, &SlugTakenError{Kind: "category", Slug: slug}
		}
		return nil, err
	}
	return c, nil
}

// categorySlug derives the slug for name and checks no other category uses it.
func (s *ContentService) categorySlug(ctx context.Context, name string, self primitive.ObjectID) (string, error) {
	slug := utils.Slugify(name)
	if slug == "" {
		return "", apperr.Invalid("name must contain at least one letter or digit")
	}
	existing, err := s.store.CategoryBySlug(ctx, slug)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return slug, nil
	case err != nil:
		return "", err
	case existing.ID != self:
		return "", &SlugTakenError{Kind: "category", Slug: slug}
	}
	return slug, nil
}

func (s *ContentService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubcategories(ctx, nil)
	if err != nil {
		return nil, err
	}
	byCategory := map[primitive.ObjectID][]models.Subcategory{}
	for _, sub := range subs {
		byCategory[sub.Category] = append(byCategory[sub.Category], sub)
	}
	for i := range categories {
		categories[i].Subcategories = byCategory[categories[i].ID]
	}
	return categories, nil
}

// GetCategory returns the category with its subcategories and published writeup ids.
func (s *ContentService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	oid, err := parseID(id, "category")
	if err != nil {
		return nil, err
	}
	c, err := s.store.CategoryByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if c.Subcategories, err = s.store.ListSubcategories(ctx, &oid); err != nil {
		return nil, err
	}
	writeups, err := s.store.ListWriteups(ctx, store.WriteupQuery{PublishedOnly: true, CategoryID: &oid})
	if err != nil {
		return nil, err
	}
	c.Writeups = writeupIDs(writeups)
	return c, nil
}

func (s *ContentService) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*models.Category, error) {
	trimPtr(patch.Name)
	trimPtr(patch.Description)
	trimPtr(patch.Icon)
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	oid, err := parseID(id, "category")
	if err != nil {
		return nil, err
	}
	c, err := s.store.CategoryByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && *patch.Name != c.Name {
		if *patch.Name == "" {
			return nil, apperr.Invalid("name is required")
		}
		if c.Slug, err = s.categorySlug(ctx, *patch.Name, c.ID); err != nil {
			return nil, err
		}
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, apperr.Invalid("description is required")
		}
		c.Description = *patch.Description
	}
	if patch.Icon != nil && *patch.Icon != "" {
		c.Icon = *patch.Icon
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, &SlugTakenError{Kind: "category", Slug: c.Slug}
		}
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes the category, its subcategories and every writeup
// under either. Children go first, so an interrupted run without a transaction
// never leaves a writeup or subcategory pointing at a missing parent.
func (s *ContentService) DeleteCategory(ctx context.Context, id string) (DeleteReport, error) {
	oid, err := parseID(id, "category")
	if err != nil {
		return DeleteReport{}, err
	}
	var report DeleteReport
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		report = DeleteReport{}
		if _, err := s.store.CategoryByID(ctx, oid); err != nil {
			return err
		}
		subs, err := s.store.ListSubcategories(ctx, &oid)
		if err != nil {
			return err
		}
		subIDs := make([]primitive.ObjectID, 0, len(subs))
		for _, sub := range subs {
			subIDs = append(subIDs, sub.ID)
		}
		if report.Writeups, err = s.store.DeleteWriteups(ctx, store.WriteupQuery{CategoryID: &oid, SubcategoryIDs: subIDs}); err != nil {
			return err
		}
		if report.Subcategories, err = s.store.DeleteSubcategoriesByCategory(ctx, oid); err != nil {
			return err
		}
		_, err = s.store.DeleteCategory(ctx, oid)
		return err
	})
	if err != nil {
		return DeleteReport{}, err
	}
	log.Info().Str("category", id).Int64("subcategories", report.Subcategories).Int64("writeups", report.Writeups).Msg("category deleted")
	return report, nil
}

type SubcategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
	Icon        string `json:"icon" validate:"max=32"`
}

func (s *ContentService) CreateSubcategory(ctx context.Context, categoryID string, in SubcategoryInput) (*models.Subcategory, error) {
	in.Name, in.Description, in.Icon = strings.TrimSpace(in.Name), strings.TrimSpace(in.Description), strings.TrimSpace(in.Icon)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	catID, err := parseID(categoryID, "category")
	if err != nil {
		return nil, err
	}
	if _, err := s.store.CategoryByID(ctx, catID); err != nil {
		return nil, err
	}
	slug, err := s.subcategorySlug(ctx, catID, in.Name, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub := &models.Subcategory{
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		Category:    catID,
		Slug:        slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sub.Icon == "" {
		sub.Icon = models.DefaultCategoryIcon
	}
	if err := s.store.InsertSubcategory(ctx, sub); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, &SlugTakenError{Kind: "subcategory", Slug: slug}
		}
		return nil, err
	}
	return sub, nil
}

func (s *ContentService) subcategorySlug(ctx context.Context, categoryID primitive.ObjectID, name string, self primitive.ObjectID) (string, error) {
	slug := utils.Slugify(name)
	if slug == "" {
		return "", apperr.Invalid("name must contain at least one letter or digit")
	}
	siblings, err := s.store.ListSubcategories(ctx, &categoryID)
	if err != nil {
		return "", err
	}
	for _, sib := range siblings {
		if sib.Slug == slug && sib.ID != self {
			return "", &SlugTakenError{Kind: "subcategory", Slug: slug}
		}
	}
	return slug, nil
}

// ListSubcategories lists every subcategory, or those of categoryID when it is non-empty.
func (s *ContentService) ListSubcategories(ctx context.Context, categoryID string) ([]models.Subcategory, error) {
	if categoryID == "" {
		return s.store.ListSubcategories(ctx, nil)
	}
	oid, err := parseID(categoryID, "category")
	if err != nil {
		return nil, err
	}
	if _, err := s.store.CategoryByID(ctx, oid); err != nil {
		return nil, err
	}
	return s.store.ListSubcategories(ctx, &oid)
}

func (s *ContentService) GetSubcategory(ctx context.Context, id string) (*models.Subcategory, error) {
	oid, err := parseID(id, "subcategory")
	if err != nil {
		return nil, err
	}
	sub, err := s.store.SubcategoryByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	writeups, err := s.store.ListWriteups(ctx, store.WriteupQuery{PublishedOnly: true, SubcategoryIDs: []primitive.ObjectID{oid}})
	if err != nil {
		return nil, err
	}
	sub.Writeups = writeupIDs(writeups)
	return sub, nil
}

func (s *ContentService) UpdateSubcategory(ctx context.Context, id string, patch CategoryPatch) (*models.Subcategory, error) {
	trimPtr(patch.Name)
	trimPtr(patch.Description)
	trimPtr(patch.Icon)
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	oid, err := parseID(id, "subcategory")
	if err != nil {
		return nil, err
	}
	sub, err := s.store.SubcategoryByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && *patch.Name != sub.Name {
		if *patch.Name == "" {
			return nil, apperr.Invalid("name is required")
		}
		if sub.Slug, err = s.subcategorySlug(ctx, sub.Category, *patch.Name, sub.ID); err != nil {
			return nil, err
		}
		sub.Name = *patch.Name
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, apperr.Invalid("description is required")
		}
		sub.Description = *patch.Description
	}
	if patch.Icon != nil && *patch.Icon != "" {
		sub.Icon = *patch.Icon
	}
	sub.UpdatedAt = s.now()
	if err := s.store.UpdateSubcategory(ctx, sub); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, &SlugTakenError{Kind: "subcategory", Slug: sub.Slug}
		}
		return nil, err
	}
	return sub, nil
}

// DeleteSubcategory removes the subcategory and its writeups.
func (s *ContentService) DeleteSubcategory(ctx context.Context, id string) (DeleteReport, error) {
	oid, err := parseID(id, "subcategory")
	if err != nil {
		return DeleteReport{}, err
	}
	var report DeleteReport
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		report = DeleteReport{}
		_, err := s.store.SubcategoryByID(ctx, oid)
		if err != nil {
			return err
		}
		if report.Writeups, err = s.store.DeleteWriteups(ctx, store.WriteupQuery{SubcategoryIDs: []primitive.ObjectID{oid}}); err != nil {
			return err
		}
		report.Subcategories, err = s.store.DeleteSubcategory(ctx, oid)
		return err
	})
	if err != nil {
		return DeleteReport{}, err
	}
	return report, nil
}

// Reconcile removes subcategories whose category is gone, then writeups whose
// category or subcategory is gone. Running it twice removes nothing the second time.
func (s *ContentService) Reconcile(ctx context.Context) (store.ReconcileResult, error) {
	var res store.ReconcileResult
	catIDs, err := s.store.CategoryIDs(ctx)
	if err != nil {
		return res, err
	}
	if res.Subcategories, err = s.store.DeleteSubcategoriesOutside(ctx, catIDs); err != nil {
		return res, err
	}
	subIDs, err := s.store.SubcategoryIDs(ctx)
	if err != nil {
		return res, err
	}
	if res.Writeups, err = s.store.DeleteOrphanWriteups(ctx, catIDs, subIDs); err != nil {
		return res, err
	}
	if res.Subcategories > 0 || res.Writeups > 0 {
		log.Warn().Int64("subcategories", res.Subcategories).Int64("writeups", res.Writeups).Msg("removed orphaned content")
	}
	return res, nil
}

func writeupIDs(writeups []models.Writeup) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(writeups))
	for _, w := range writeups {
		ids = append(ids, w.ID)
	}
	return ids
}
