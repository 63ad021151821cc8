package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventUserStatusChanged is broadcast when an admin blocks or unblocks a user.
const EventUserStatusChanged = "userStatusChanged"

var (
	ErrInvalidCredentials   = apperr.New(apperr.ErrUnauthenticated, "Invalid email or password")
	ErrRegistrationDisabled = apperr.New(apperr.ErrForbidden, "User registration is currently disabled")
	ErrSetupCompleted       = apperr.New(apperr.ErrForbidden, "An admin already exists; only admins can create more")
	ErrWrongPassword        = apperr.New(apperr.ErrUnauthenticated, "Current password is incorrect")
	errEmailTaken           = apperr.New(apperr.ErrConflict, "Email is already registered")
	errPrincipalGone        = apperr.New(apperr.ErrUnauthenticated, "Please authenticate.")
)

type AccountStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	InsertUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.User, error)
	ToggleUserActive(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateUserProfile(ctx context.Context, u *models.User) error
	SetUserPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error

	CountAdmins(ctx context.Context) (int64, error)
	AdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	AdminByID(ctx context.Context, id primitive.ObjectID) (*models.Admin, error)
	InsertAdmin(ctx context.Context, a *models.Admin) error
}

// Publisher fans an event out to connected realtime clients.
type Publisher interface {
	Publish(eventType string, data interface{})
}

// AdminSeed are credentials accepted for the first admin login when no admin
// with that email exists yet. The admin is created on that login.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

type AccountService struct {
	store    AccountStore
	tokens   *auth.Tokens
	settings SettingsSource
	events   Publisher
	seed     AdminSeed
	now      func() time.Time
}

func NewAccountService(s AccountStore, tokens *auth.Tokens, settings SettingsSource, events Publisher, seed AdminSeed) *AccountService {
	return &AccountService{
		store:    s,
		tokens:   tokens,
		settings: settings,
		events:   events,
		seed:     seed,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminSetupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
}

// Session is the result of a successful login or registration. Token is empty
// when the account awaits admin approval.
type Session struct {
	Token string        `json:"token,omitempty"`
	User  *models.User  `json:"user,omitempty"`
	Admin *models.Admin `json:"admin,omitempty"`
}

func (s *AccountService) sessionTTL() time.Duration {
	return time.Duration(s.settings.Current().Security.SessionTimeout) * time.Hour
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}
	settings := s.settings.Current()
	if !settings.EnableUserRegistration {
		return nil, ErrRegistrationDisabled
	}
	if msgs := passwordProblems(in.Password, settings.Security); len(msgs) > 0 {
		return nil, apperr.Invalid(msgs...)
	}
	existing, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errEmailTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hash,
		Role:      models.RoleUser,
		IsActive:  !settings.Security.RequireAdminApproval,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	session := &Session{User: user}
	if user.IsActive {
		if session.Token, err = s.tokens.Issue(user.ID, models.RoleUser, s.sessionTTL()); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func passwordProblems(password string, sec models.SecuritySettings) []string {
	var msgs []string
	if len([]rune(password)) < sec.PasswordMinLength {
		msgs = append(msgs, fmt.Sprintf("Password must be at least %d characters long", sec.PasswordMinLength))
	}
	if sec.RequireStrongPassword {
		var upper, lower, digit bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		if !upper || !lower || !digit {
			msgs = append(msgs, "Password must contain an uppercase letter, a lowercase letter and a digit")
		}
	}
	return msgs
}

// Login authenticates a user. Blocked accounts are refused even with the right password.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperr.ErrBlocked
	}
	now := s.now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user", user.ID.Hex()).Msg("failed to record last login")
	}
	user.LastLogin = &now
	token, err := s.tokens.Issue(user.ID, models.RoleUser, s.sessionTTL())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func (s *AccountService) AdminLogin(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}
	admin, err := s.store.AdminByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		if s.seed.Email == "" || in.Email != strings.ToLower(s.seed.Email) || in.Password != s.seed.Password {
			return nil, ErrInvalidCredentials
		}
		if admin, err = s.ensureSeedAdmin(ctx); err != nil {
			return nil, err
		}
	} else if !auth.CheckPassword(admin.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(admin.ID, models.RoleAdmin, s.sessionTTL())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Admin: admin}, nil
}

func (s *AccountService) ensureSeedAdmin(ctx context.Context) (*models.Admin, error) {
	email := strings.ToLower(s.seed.Email)
	// Check again in case of race
	admin, err := s.store.AdminByEmail(ctx, email)
	if err != nil || admin != nil {
		return admin, err
	}
	hash, err := auth.HashPassword(s.seed.Password)
	if err != nil {
		return nil, err
	}
	admin = &models.Admin{
		Email:     email,
		Password:  hash,
		Name:      s.seed.Name,
		Role:      models.RoleAdmin,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertAdmin(ctx, admin); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return s.store.AdminByEmail(ctx, email)
		}
		return nil, err
	}
	log.Info().Str("email", email).Msg("seeded admin account")
	return admin, nil
}

// SetupAdmin creates an admin. Without an existing admin anyone may call it;
// afterwards caller must be an admin.
func (s *AccountService) SetupAdmin(ctx context.Context, caller *auth.Principal, in AdminSetupInput) (*models.Admin, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && (caller == nil || !caller.IsAdmin()) {
		return nil, ErrSetupCompleted
	}
	if msgs := passwordProblems(in.Password, s.settings.Current().Security); len(msgs) > 0 {
		return nil, apperr.Invalid(msgs...)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{
		Email:     in.Email,
		Password:  hash,
		Name:      in.Name,
		Role:      models.RoleAdmin,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertAdmin(ctx, admin); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.New(apperr.ErrConflict, "An admin with this email already exists")
		}
		return nil, err
	}
	return admin, nil
}

func (s *AccountService) Admin(ctx context.Context, id primitive.ObjectID) (*models.Admin, error) {
	return s.store.AdminByID(ctx, id)
}

func (s *AccountService) User(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *AccountService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// SetActive blocks or unblocks a user and tells connected clients about it.
func (s *AccountService) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	oid, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.store.SetUserActive(ctx, oid, active)
	if err != nil {
		return nil, err
	}
	s.publishStatus(user)
	return user, nil
}

// ToggleActive flips a user between blocked and active.
func (s *AccountService) ToggleActive(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.store.ToggleUserActive(ctx, oid)
	if err != nil {
		return nil, err
	}
	s.publishStatus(user)
	return user, nil
}

func (s *AccountService) publishStatus(user *models.User) {
	if s.events == nil {
		return
	}
	s.events.Publish(EventUserStatusChanged, map[string]interface{}{
		"userId":   user.ID.Hex(),
		"isActive": user.IsActive,
	})
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// ChangePassword replaces the user's password after checking the current one.
// The new password is held to the same policy as registration.
func (s *AccountService) ChangePassword(ctx context.Context, id primitive.ObjectID, in ChangePasswordInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, in.CurrentPassword) {
		return ErrWrongPassword
	}
	if msgs := passwordProblems(in.NewPassword, s.settings.Current().Security); len(msgs) > 0 {
		return apperr.Invalid(msgs...)
	}
	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	return s.store.SetUserPassword(ctx, id, hash)
}

// ProfileInput changes the fields that are present. Blank strings count as absent.
type ProfileInput struct {
	Username    *string           `json:"username" validate:"omitempty,min=3,max=30"`
	Email       *string           `json:"email" validate:"omitempty,email"`
	Bio         *string           `json:"bio" validate:"omitempty,max=500"`
	Location    *string           `json:"location" validate:"omitempty,max=100"`
	Skills      []string          `json:"skills" validate:"omitempty,max=30,dive,max=50"`
	SocialLinks map[string]string `json:"socialLinks" validate:"omitempty,max=10,dive,omitempty,url"`
}

func blankToNil(p **string) {
	if *p == nil {
		return
	}
	v := strings.TrimSpace(**p)
	if v == "" {
		*p = nil
		return
	}
	*p = &v
}

func (s *AccountService) UpdateProfile(ctx context.Context, id primitive.ObjectID, in ProfileInput) (*models.User, error) {
	blankToNil(&in.Username)
	blankToNil(&in.Email)
	blankToNil(&in.Bio)
	blankToNil(&in.Location)
	if in.Email != nil {
		lower := strings.ToLower(*in.Email)
		in.Email = &lower
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil && *in.Email != user.Email {
		other, err := s.store.UserByEmail(ctx, *in.Email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, errEmailTaken
		}
		user.Email = *in.Email
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	profile := models.Profile{
		Bio:         user.Profile.Bio,
		Location:    user.Profile.Location,
		Skills:      append([]string(nil), user.Profile.Skills...),
		SocialLinks: user.Profile.SocialLinks,
	}
	if in.Bio != nil {
		profile.Bio = *in.Bio
	}
	if in.Location != nil {
		profile.Location = *in.Location
	}
	if in.Skills != nil {
		profile.Skills = normalizeTags(in.Skills)
	}
	if in.SocialLinks != nil {
		profile.SocialLinks = make(map[string]string, len(in.SocialLinks))
		for k, v := range in.SocialLinks {
			if v = strings.TrimSpace(v); v != "" {
				profile.SocialLinks[k] = v
			}
		}
	}
	user.Profile = profile
	if err := s.store.UpdateUserProfile(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Status reports whether the account behind a raw token is active. Unlike the
// guard it answers for blocked users too, so a client can tell it was blocked.
func (s *AccountService) Status(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, apperr.ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return false, err
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return false, apperr.ErrInvalidToken
	}
	if claims.Role == models.RoleAdmin {
		if _, err := s.store.AdminByID(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	}
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsActive, nil
}

// ResolvePrincipal loads the account named by verified token claims.
func (s *AccountService) ResolvePrincipal(ctx context.Context, claims *auth.Claims) (auth.Principal, error) {
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return auth.Principal{}, apperr.ErrInvalidToken
	}
	if claims.Role == models.RoleAdmin {
		admin, err := s.store.AdminByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return auth.Principal{}, errPrincipalGone
		}
		if err != nil {
			return auth.Principal{}, err
		}
		return auth.Principal{ID: admin.ID, Role: models.RoleAdmin, Email: admin.Email, Name: admin.Name}, nil
	}
	user, err := s.store.UserByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return auth.Principal{}, errPrincipalGone
	}
	if err != nil {
		return auth.Principal{}, err
	}
	if !user.IsActive {
		return auth.Principal{}, apperr.ErrBlocked
	}
	return auth.Principal{ID: user.ID, Role: models.RoleUser, Email: user.Email, Name: user.Username}, nil
}
