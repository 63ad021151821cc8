package service

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/rs/zerolog/log"
)

type SettingsStore interface {
	LoadSettings(ctx context.Context, defaults models.Settings) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
}

// SettingsService keeps the site settings cached in process. Load must run at
// startup; until then Current returns the defaults.
type SettingsService struct {
	store   SettingsStore
	current atomic.Pointer[models.Settings]
	mu      sync.Mutex
	now     func() time.Time
}

func NewSettingsService(store SettingsStore) *SettingsService {
	s := &SettingsService{store: store, now: time.Now}
	defaults := models.DefaultSettings()
	s.current.Store(&defaults)
	return s
}

// Load creates the settings document if needed and fills the cache.
func (s *SettingsService) Load(ctx context.Context) error {
	return s.Apply(ctx)
}

// Current returns a copy of the cached settings.
func (s *SettingsService) Current() models.Settings {
	return s.current.Load().Clone()
}

// Public returns the subset of settings safe to show unauthenticated clients.
func (s *SettingsService) Public() models.PublicSettings {
	return s.current.Load().Public()
}

// Update merges patch onto the current settings, validates the result and
// stores it. Nested objects are merged field by field; lists are replaced.
func (s *SettingsService) Update(ctx context.Context, patch json.RawMessage) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.Current()
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&candidate); err != nil {
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return models.Settings{}, apperr.Invalid("unknown setting " + field)
		}
		return models.Settings{}, apperr.Invalid("settings must be a JSON object with correctly typed fields")
	}
	candidate.ID = models.SettingsID
	if msgs := ValidateSettings(candidate); len(msgs) > 0 {
		return models.Settings{}, apperr.Invalid(msgs...)
	}
	candidate.UpdatedAt = s.now()
	if err := s.store.SaveSettings(ctx, &candidate); err != nil {
		return models.Settings{}, err
	}
	s.swap(candidate)
	if err := s.Apply(ctx); err != nil {
		log.Error().Err(err).Msg("failed to re-apply settings after update")
	}
	return s.Current(), nil
}

// Apply re-reads the stored settings into the cache.
func (s *SettingsService) Apply(ctx context.Context) error {
	loaded, err := s.store.LoadSettings(ctx, models.DefaultSettings())
	if err != nil {
		return err
	}
	s.swap(*loaded)
	return nil
}

func (s *SettingsService) swap(next models.Settings) {
	next = next.Clone()
	prev := s.current.Swap(&next)
	if prev != nil && prev.MaintenanceMode != next.MaintenanceMode {
		if next.MaintenanceMode {
			log.Warn().Msg("maintenance mode enabled")
		} else {
			log.Info().Msg("maintenance mode disabled")
		}
	}
}

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// ValidateSettings returns one message per violated rule; an empty result means valid.
func ValidateSettings(st models.Settings) []string {
	atLeast := func(min int, msg string) []validation.Rule {
		// Min skips zero values, so Required catches 0.
		return []validation.Rule{validation.Required.Error(msg), validation.Min(min).Error(msg)}
	}
	checks := []struct {
		value interface{}
		rules []validation.Rule
	}{
		{st.SiteName, []validation.Rule{
			validation.Required.Error("Site name must be at least 3 characters long"),
			validation.RuneLength(3, 0).Error("Site name must be at least 3 characters long"),
		}},
		{st.ContactEmail, []validation.Rule{
			validation.Required.Error("Invalid contact email format"),
			validation.Match(emailPattern).Error("Invalid contact email format"),
		}},
		{st.MaxWriteupsPerUser, atLeast(1, "Max writeups per user must be at least 1")},
		{st.MaxReadsPerDay, atLeast(1, "Max reads per day must be at least 1")},
		{st.Security.MaxLoginAttempts, atLeast(1, "Max login attempts must be at least 1")},
		{st.Security.SessionTimeout, atLeast(1, "Session timeout must be at least 1 hour")},
		{st.Security.PasswordMinLength, atLeast(8, "Password minimum length must be at least 8 characters")},
		{st.MaxFileSize, atLeast(1, "Max file size must be at least 1 MB")},
		{st.AllowedFileTypes, []validation.Rule{
			validation.Required.Error("At least one file type must be allowed"),
		}},
		{st.DefaultUserRole, []validation.Rule{
			validation.In(models.RoleUser, models.RoleAdmin).Error("Default user role must be user or admin"),
		}},
		{st.Appearance.Theme, []validation.Rule{
			validation.In(models.ThemeLight, models.ThemeDark).Error("Theme must be light or dark"),
		}},
		{st.Appearance.PrimaryColor, []validation.Rule{validation.Match(hexColorPattern).Error("Primary color must be a hex color")}},
		{st.Appearance.SecondaryColor, []validation.Rule{validation.Match(hexColorPattern).Error("Secondary color must be a hex color")}},
		{st.Appearance.AccentColor, []validation.Rule{validation.Match(hexColorPattern).Error("Accent color must be a hex color")}},
	}
	var msgs []string
	for _, c := range checks {
		if err := validation.Validate(c.value, c.rules...); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}
