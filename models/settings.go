package models

import "time"

// SettingsID is the _id of the single settings document.
const SettingsID = "global"

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type EmailNotifications struct {
	NewUser    bool `bson:"newUser" json:"newUser"`
	NewWriteup bool `bson:"newWriteup" json:"newWriteup"`
	NewComment bool `bson:"newComment" json:"newComment"`
	ReportFlag bool `bson:"reportFlag" json:"reportFlag"`
}

type SecuritySettings struct {
	RequireEmailVerification bool `bson:"requireEmailVerification" json:"requireEmailVerification"`
	RequireAdminApproval     bool `bson:"requireAdminApproval" json:"requireAdminApproval"`
	MaxLoginAttempts         int  `bson:"maxLoginAttempts" json:"maxLoginAttempts"`
	SessionTimeout           int  `bson:"sessionTimeout" json:"sessionTimeout"` // hours
	PasswordMinLength        int  `bson:"passwordMinLength" json:"passwordMinLength"`
	RequireStrongPassword    bool `bson:"requireStrongPassword" json:"requireStrongPassword"`
}

type Appearance struct {
	Theme          string `bson:"theme" json:"theme"`
	PrimaryColor   string `bson:"primaryColor" json:"primaryColor"`
	SecondaryColor string `bson:"secondaryColor" json:"secondaryColor"`
	AccentColor    string `bson:"accentColor" json:"accentColor"`
}

type Settings struct {
	ID                     string             `bson:"_id" json:"-"`
	SiteName               string             `bson:"siteName" json:"siteName"`
	SiteDescription        string             `bson:"siteDescription" json:"siteDescription"`
	ContactEmail           string             `bson:"contactEmail" json:"contactEmail"`
	MaxWriteupsPerUser     int                `bson:"maxWriteupsPerUser" json:"maxWriteupsPerUser"`
	MaxReadsPerDay         int                `bson:"maxReadsPerDay" json:"maxReadsPerDay"`
	EnableUserRegistration bool               `bson:"enableUserRegistration" json:"enableUserRegistration"`
	EnableComments         bool               `bson:"enableComments" json:"enableComments"`
	EnableRatings          bool               `bson:"enableRatings" json:"enableRatings"`
	MaintenanceMode        bool               `bson:"maintenanceMode" json:"maintenanceMode"`
	DefaultUserRole        string             `bson:"defaultUserRole" json:"defaultUserRole"`
	AllowedFileTypes       []string           `bson:"allowedFileTypes" json:"allowedFileTypes"`
	MaxFileSize            int                `bson:"maxFileSize" json:"maxFileSize"` // MB
	EmailNotifications     EmailNotifications `bson:"emailNotifications" json:"emailNotifications"`
	Security               SecuritySettings   `bson:"security" json:"security"`
	Appearance             Appearance         `bson:"appearance" json:"appearance"`
	UpdatedAt              time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DefaultSettings returns the values a fresh deployment starts with.
func DefaultSettings() Settings {
	return Settings{
		ID:                     SettingsID,
		SiteName:               "CTF Writeups Platform",
		SiteDescription:        "A platform for sharing and discovering CTF writeups",
		ContactEmail:           "admin@example.com",
		MaxWriteupsPerUser:     10,
		MaxReadsPerDay:         50,
		EnableUserRegistration: true,
		EnableComments:         true,
		EnableRatings:          true,
		DefaultUserRole:        RoleUser,
		AllowedFileTypes:       []string{"image/jpeg", "image/png", "image/gif"},
		MaxFileSize:            5,
		EmailNotifications: EmailNotifications{
			NewUser:    true,
			NewWriteup: true,
			NewComment: true,
			ReportFlag: true,
		},
		Security: SecuritySettings{
			RequireEmailVerification: true,
			MaxLoginAttempts:         5,
			SessionTimeout:           24,
			PasswordMinLength:        8,
			RequireStrongPassword:    true,
		},
		Appearance: Appearance{
			Theme:          ThemeDark,
			PrimaryColor:   "#3b82f6",
			SecondaryColor: "#10b981",
			AccentColor:    "#8b5cf6",
		},
	}
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.AllowedFileTypes = append([]string(nil), s.AllowedFileTypes...)
	return s
}

// PublicSettings is the subset exposed to unauthenticated clients.
type PublicSettings struct {
	SiteName               string     `json:"siteName"`
	SiteDescription        string     `json:"siteDescription"`
	MaintenanceMode        bool       `json:"maintenanceMode"`
	EnableUserRegistration bool       `json:"enableUserRegistration"`
	EnableComments         bool       `json:"enableComments"`
	EnableRatings          bool       `json:"enableRatings"`
	Appearance             Appearance `json:"appearance"`
}

func (s Settings) Public() PublicSettings {
	return PublicSettings{
		SiteName:               s.SiteName,
		SiteDescription:        s.SiteDescription,
		MaintenanceMode:        s.MaintenanceMode,
		EnableUserRegistration: s.EnableUserRegistration,
		EnableComments:         s.EnableComments,
		EnableRatings:          s.EnableRatings,
		Appearance:             s.Appearance,
	}
}
