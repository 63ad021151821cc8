package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *Store) LoadSettings(ctx context.Context, defaults models.Settings) (*models.Settings, error) {
	if err := s.check(ctx, "LoadSettings"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		d := defaults.Clone()
		s.settings = &d
	}
	out := s.settings.Clone()
	return &out, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if err := s.check(ctx, "SaveSettings"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := settings.Clone()
	c.ID = models.SettingsID
	s.settings = &c
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	if err := s.check(ctx, "CountUsers"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := s.check(ctx, "UserByEmail"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	if err := s.check(ctx, "InsertUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: duplicate email", apperr.ErrConflict)
		}
	}
	user.ID = primitive.NewObjectID()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := s.check(ctx, "UserByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := s.check(ctx, "ListUsers"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetUserActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.User, error) {
	if err := s.check(ctx, "SetUserActive"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	u.IsActive = active
	s.users[id] = u
	return &u, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, user *models.User) error {
	if err := s.check(ctx, "UpdateUserProfile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[user.ID]
	if !ok {
		return apperr.NotFound("user")
	}
	for id, other := range s.users {
		if id != user.ID && other.Email == user.Email {
			return fmt.Errorf("%w: duplicate email", apperr.ErrConflict)
		}
	}
	u.Username, u.Email, u.Profile = user.Username, user.Email, user.Profile
	s.users[user.ID] = u
	return nil
}

func (s *Store) SetUserPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	if err := s.check(ctx, "SetUserPassword"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.Password = hash
	s.users[id] = u
	return nil
}

func (s *Store) ToggleUserActive(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := s.check(ctx, "ToggleUserActive"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	u.IsActive = !u.IsActive
	s.users[id] = u
	return &u, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	if err := s.check(ctx, "TouchLastLogin"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLogin = &at
		s.users[id] = u
	}
	return nil
}

func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	if err := s.check(ctx, "CountAdmins"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.admins)), nil
}

func (s *Store) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if err := s.check(ctx, "AdminByEmail"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) AdminByID(ctx context.Context, id primitive.ObjectID) (*models.Admin, error) {
	if err := s.check(ctx, "AdminByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, apperr.NotFound("admin")
	}
	return &a, nil
}

func (s *Store) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	if err := s.check(ctx, "InsertAdmin"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == admin.Email {
			return fmt.Errorf("%w: duplicate email", apperr.ErrConflict)
		}
	}
	admin.ID = primitive.NewObjectID()
	s.admins[admin.ID] = *admin
	return nil
}

func (s *Store) CountUsersCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	if err := s.check(ctx, "CountUsersCreatedSince"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error) {
	if err := s.check(ctx, "CountUsersActiveSince"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.LastLogin != nil && !u.LastLogin.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) UsersPerDay(ctx context.Context, field string, since time.Time) ([]store.DayCount, error) {
	if err := s.check(ctx, "UsersPerDay"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, u := range s.users {
		var at *time.Time
		switch field {
		case "createdAt":
			at = &u.CreatedAt
		case "lastLogin":
			at = u.LastLogin
		}
		if at == nil || at.Before(since) {
			continue
		}
		counts[at.UTC().Format("2006-01-02")]++
	}
	out := make([]store.DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, store.DayCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// PutUser stores u as-is, keeping its ID when set. Tests use it to seed fixtures.
func (s *Store) PutUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = u
	return u
}

// PutBook stores b as-is, keeping its ID when set.
func (s *Store) PutBook(b models.Book) models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	s.books[b.ID] = copyBook(b)
	return b
}

// PutWriteup stores w as-is, keeping its ID when set.
func (s *Store) PutWriteup(w models.Writeup) models.Writeup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	s.writeups[w.ID] = copyWriteup(w)
	return w
}
