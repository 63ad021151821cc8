package service

import (
	"context"
	"strings"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	searchLimit = 5
	RecentLimit = 4
)

type WriteupInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	Content     string `json:"content" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Subcategory string `json:"subcategory"`
	// Older clients send the ids under these names.
	CategoryID    string         `json:"categoryId" validate:"-"`
	SubcategoryID string         `json:"subcategoryId" validate:"-"`
	Difficulty    string         `json:"difficulty" validate:"required,oneof=Easy Medium Hard Expert"`
	Platform      string         `json:"platform" validate:"max=100"`
	PlatformURL   string         `json:"platformUrl" validate:"omitempty,url"`
	Bounty        *models.Bounty `json:"bounty"`
	Tags          []string       `json:"tags"`
	IsPublished   *bool          `json:"isPublished"`
	IsFeatured    bool           `json:"isFeatured"`
}

// WriteupPatch holds the fields to change. An empty Subcategory detaches the writeup.
type WriteupPatch struct {
	Title         *string        `json:"title" validate:"omitempty,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=2000"`
	Content       *string        `json:"content"`
	Category      *string        `json:"category"`
	Subcategory   *string        `json:"subcategory"`
	CategoryID    *string        `json:"categoryId" validate:"-"`
	SubcategoryID *string        `json:"subcategoryId" validate:"-"`
	Difficulty    *string        `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard Expert"`
	Platform      *string        `json:"platform" validate:"omitempty,max=100"`
	PlatformURL   *string        `json:"platformUrl" validate:"omitempty,url"`
	Bounty        *models.Bounty `json:"bounty"`
	Tags          *[]string      `json:"tags"`
	IsPublished   *bool          `json:"isPublished"`
	IsFeatured    *bool          `json:"isFeatured"`
}

// WriteupFilter narrows the public listing by category or subcategory slug.
type WriteupFilter struct {
	CategorySlug    string
	SubcategorySlug string
}

// ReadResult is the outcome of a read request. Counted is false when the user
// had already read the writeup and Reads is unchanged.
type ReadResult struct {
	Reads   int  `json:"reads"`
	Counted bool `json:"counted"`
}

func (s *ContentService) CreateWriteup(ctx context.Context, in WriteupInput) (*models.Writeup, error) {
	in.Title, in.Description = strings.TrimSpace(in.Title), strings.TrimSpace(in.Description)
	if in.Category == "" {
		in.Category = in.CategoryID
	}
	if in.Subcategory == "" {
		in.Subcategory = in.SubcategoryID
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	catID, subID, err := s.resolvePlacement(ctx, in.Category, in.Subcategory)
	if err != nil {
		return nil, err
	}
	now := s.now()
	w := &models.Writeup{
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Category:    catID,
		Subcategory: subID,
		Difficulty:  in.Difficulty,
		Platform:    strings.TrimSpace(in.Platform),
		PlatformURL: in.PlatformURL,
		Bounty:      normalizeBounty(in.Bounty),
		Tags:        normalizeTags(in.Tags),
		IsPublished: true,
		IsFeatured:  in.IsFeatured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsPublished != nil {
		w.IsPublished = *in.IsPublished
	}
	if err := s.store.InsertWriteup(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// resolvePlacement checks the category exists and, when given, that the
// subcategory exists and belongs to it.
func (s *ContentService) resolvePlacement(ctx context.Context, categoryHex, subcategoryHex string) (primitive.ObjectID, *primitive.ObjectID, error) {
	catID, err := parseID(categoryHex, "category")
	if err != nil {
		return catID, nil, err
	}
	if _, err := s.store.CategoryByID(ctx, catID); err != nil {
		return catID, nil, err
	}
	if subcategoryHex == "" {
		return catID, nil, nil
	}
	subID, err := parseID(subcategoryHex, "subcategory")
	if err != nil {
		return catID, nil, err
	}
	sub, err := s.store.SubcategoryByID(ctx, subID)
	if err != nil {
		return catID, nil, err
	}
	if sub.Category != catID {
		return catID, nil, apperr.Invalid("subcategory does not belong to the selected category")
	}
	return catID, &subID, nil
}

func (s *ContentService) UpdateWriteup(ctx context.Context, id string, patch WriteupPatch) (*models.Writeup, error) {
	trimPtr(patch.Title)
	trimPtr(patch.Description)
	if patch.Category == nil {
		patch.Category = patch.CategoryID
	}
	if patch.Subcategory == nil {
		patch.Subcategory = patch.SubcategoryID
	}
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	oid, err := parseID(id, "writeup")
	if err != nil {
		return nil, err
	}
	w, err := s.store.WriteupByID(ctx, oid)
	if err != nil {
		return nil, err
	}

	if patch.Category != nil || patch.Subcategory != nil {
		catHex := w.Category.Hex()
		if patch.Category != nil {
			catHex = *patch.Category
		}
		subHex := ""
		switch {
		case patch.Subcategory != nil:
			subHex = *patch.Subcategory
		case w.Subcategory != nil && catHex == w.Category.Hex():
			subHex = w.Subcategory.Hex()
		}
		if w.Category, w.Subcategory, err = s.resolvePlacement(ctx, catHex, subHex); err != nil {
			return nil, err
		}
	}

	var missing []string
	setText := func(dst *string, src *string, field string) {
		if src == nil {
			return
		}
		if *src == "" {
			missing = append(missing, field+" is required")
			return
		}
		*dst = *src
	}
	setText(&w.Title, patch.Title, "title")
	setText(&w.Description, patch.Description, "description")
	setText(&w.Content, patch.Content, "content")
	setText(&w.Difficulty, patch.Difficulty, "difficulty")
	if len(missing) > 0 {
		return nil, apperr.Invalid(missing...)
	}
	if patch.Platform != nil {
		w.Platform = strings.TrimSpace(*patch.Platform)
	}
	if patch.PlatformURL != nil {
		w.PlatformURL = *patch.PlatformURL
	}
	if patch.Bounty != nil {
		w.Bounty = normalizeBounty(patch.Bounty)
	}
	if patch.Tags != nil {
		w.Tags = normalizeTags(*patch.Tags)
	}
	if patch.IsPublished != nil {
		w.IsPublished = *patch.IsPublished
	}
	if patch.IsFeatured != nil {
		w.IsFeatured = *patch.IsFeatured
	}
	w.UpdatedAt = s.now()
	if err := s.store.UpdateWriteup(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *ContentService) DeleteWriteup(ctx context.Context, id string) error {
	oid, err := parseID(id, "writeup")
	if err != nil {
		return err
	}
	n, err := s.store.DeleteWriteup(ctx, oid)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("writeup")
	}
	return nil
}

// GetWriteup returns a writeup. Drafts are reported as not found unless includeDrafts is set.
func (s *ContentService) GetWriteup(ctx context.Context, id string, includeDrafts bool) (*models.Writeup, error) {
	oid, err := parseID(id, "writeup")
	if err != nil {
		return nil, err
	}
	w, err := s.store.WriteupByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !w.IsPublished && !includeDrafts {
		return nil, apperr.NotFound("writeup")
	}
	return w, nil
}

// ListPublished returns published writeups newest first. A category slug also
// includes writeups filed under any of its subcategories.
func (s *ContentService) ListPublished(ctx context.Context, f WriteupFilter) ([]models.Writeup, error) {
	q := store.WriteupQuery{PublishedOnly: true}
	switch {
	case f.SubcategorySlug != "":
		sub, err := s.store.SubcategoryBySlug(ctx, f.SubcategorySlug)
		if err != nil {
			return nil, err
		}
		q.SubcategoryIDs = []primitive.ObjectID{sub.ID}
	case f.CategorySlug != "":
		c, err := s.store.CategoryBySlug(ctx, f.CategorySlug)
		if err != nil {
			return nil, err
		}
		subs, err := s.store.ListSubcategories(ctx, &c.ID)
		if err != nil {
			return nil, err
		}
		q.CategoryID = &c.ID
		for _, sub := range subs {
			q.SubcategoryIDs = append(q.SubcategoryIDs, sub.ID)
		}
	}
	return s.store.ListWriteups(ctx, q)
}

// ListAll returns drafts and published writeups for the admin console.
func (s *ContentService) ListAll(ctx context.Context) ([]models.Writeup, error) {
	return s.store.ListWriteups(ctx, store.WriteupQuery{})
}

func (s *ContentService) Recent(ctx context.Context, n int) ([]models.Writeup, error) {
	if n <= 0 {
		n = RecentLimit
	}
	return s.store.ListWriteups(ctx, store.WriteupQuery{PublishedOnly: true, Limit: int64(n)})
}

// Search matches query case-insensitively against title, content, description
// and tags of published writeups. Ranking and the cap happen in the store, over
// every match.
func (s *ContentService) Search(ctx context.Context, query string) ([]models.Writeup, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Writeup{}, nil
	}
	return s.store.SearchWriteups(ctx, query, searchLimit)
}

// RecordRead counts user as a reader of the writeup at most once.
func (s *ContentService) RecordRead(ctx context.Context, id string, user primitive.ObjectID) (ReadResult, error) {
	oid, err := parseID(id, "writeup")
	if err != nil {
		return ReadResult{}, err
	}
	reads, counted, err := s.store.RecordWriteupRead(ctx, oid, user, s.now())
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{Reads: reads, Counted: counted}, nil
}

// ResetTodayReads zeroes the daily counter of every writeup.
func (s *ContentService) ResetTodayReads(ctx context.Context) (int64, error) {
	return s.store.ResetWriteupTodayReads(ctx)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func normalizeBounty(b *models.Bounty) models.Bounty {
	if b == nil {
		return models.Bounty{Currency: models.DefaultBountyCurrency}
	}
	out := *b
	if out.Currency == "" {
		out.Currency = models.DefaultBountyCurrency
	}
	return out
}
