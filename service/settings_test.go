package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/kevinaaaquil/writeups/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	assert.Empty(t, ValidateSettings(models.DefaultSettings()))
}

func TestValidateSettingsReportsEveryRule(t *testing.T) {
	st := models.DefaultSettings()
	st.SiteName = "ab"
	st.ContactEmail = "not-an-email"
	st.MaxReadsPerDay = 0
	st.Security.PasswordMinLength = 6
	st.AllowedFileTypes = nil
	st.Appearance.Theme = "neon"

	msgs := ValidateSettings(st)
	assert.Equal(t, []string{
		"Site name must be at least 3 characters long",
		"Invalid contact email format",
		"Max reads per day must be at least 1",
		"Password minimum length must be at least 8 characters",
		"At least one file type must be allowed",
		"Theme must be light or dark",
	}, msgs)
}

func TestValidateSettingsEmptyEmail(t *testing.T) {
	st := models.DefaultSettings()
	st.ContactEmail = ""
	st.Security.SessionTimeout = -1
	assert.Equal(t, []string{
		"Invalid contact email format",
		"Session timeout must be at least 1 hour",
	}, ValidateSettings(st))
}

func TestSettingsLoadCreatesDefaults(t *testing.T) {
	ms := memstore.New()
	svc := NewSettingsService(ms)
	require.NoError(t, svc.Load(context.Background()))

	stored, err := ms.LoadSettings(context.Background(), models.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "CTF Writeups Platform", stored.SiteName)
	assert.Equal(t, models.DefaultSettings().Security, svc.Current().Security)
}

func TestSettingsUpdateMergesNestedFields(t *testing.T) {
	ms := memstore.New()
	svc := NewSettingsService(ms)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	got, err := svc.Update(ctx, json.RawMessage(`{"siteName":"Bug Notes","security":{"maxLoginAttempts":3},"maintenanceMode":true}`))
	require.NoError(t, err)
	assert.Equal(t, "Bug Notes", got.SiteName)
	assert.Equal(t, 3, got.Security.MaxLoginAttempts)
	assert.Equal(t, 24, got.Security.SessionTimeout, "untouched nested field keeps its value")
	assert.True(t, got.MaintenanceMode)
	assert.False(t, got.UpdatedAt.IsZero())

	stored, _ := ms.LoadSettings(ctx, models.Settings{})
	assert.Equal(t, "Bug Notes", stored.SiteName)
	assert.True(t, svc.Public().MaintenanceMode)
}

func TestSettingsInvalidUpdateKeepsState(t *testing.T) {
	ms := memstore.New()
	svc := NewSettingsService(ms)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))
	before := svc.Current()

	_, err := svc.Update(ctx, json.RawMessage(`{"siteName":"x","maxFileSize":0,"contactEmail":"nope"}`))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, apperr.Messages(err), 3)
	assert.Equal(t, before, svc.Current())

	_, err = svc.Update(ctx, json.RawMessage(`{"maxFileSize":"big"}`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stored, _ := ms.LoadSettings(ctx, models.Settings{})
	assert.Equal(t, before.SiteName, stored.SiteName)
}

func TestSettingsUpdateRejectsUnknownKeys(t *testing.T) {
	svc := NewSettingsService(memstore.New())
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	_, err := svc.Update(ctx, json.RawMessage(`{"theme":"light"}`))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{`unknown setting "theme"`}, apperr.Messages(err))
	assert.Equal(t, models.ThemeDark, svc.Current().Appearance.Theme)

	_, err = svc.Update(ctx, json.RawMessage(`{"security":{"maxLoginAtempts":2}}`))
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.Update(ctx, json.RawMessage(`{"appearance":{"theme":"light"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, got.Appearance.Theme)
}

func TestSettingsUpdateStoreFailure(t *testing.T) {
	ms := memstore.New()
	svc := NewSettingsService(ms)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))
	ms.Fail = func(ctx context.Context, op string) error {
		if op == "SaveSettings" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := svc.Update(ctx, json.RawMessage(`{"siteName":"Changed"}`))
	require.Error(t, err)
	assert.Equal(t, "CTF Writeups Platform", svc.Current().SiteName)
}

func TestCurrentReturnsCopy(t *testing.T) {
	svc := NewSettingsService(memstore.New())
	a := svc.Current()
	a.AllowedFileTypes[0] = "text/html"
	assert.Equal(t, "image/jpeg", svc.Current().AllowedFileTypes[0])
}

func TestPublicSettingsShape(t *testing.T) {
	svc := NewSettingsService(memstore.New())
	raw, err := json.Marshal(svc.Public())
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.ElementsMatch(t, []string{
		"siteName", "siteDescription", "maintenanceMode", "enableUserRegistration",
		"enableComments", "enableRatings", "appearance",
	}, keys(fields))
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
