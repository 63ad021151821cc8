package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kevinaaaquil/writeups/models"
)

// SettingsSource returns the current site settings.
type SettingsSource interface {
	Current() models.Settings
}

// maintenanceExempt lists the path prefixes that stay reachable in maintenance mode.
var maintenanceExempt = []string{"/api/admin", "/api/auth/login", "/api/health"}

func gateJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SettingsGate applies maintenance mode and the feature toggles to every request.
func SettingsGate(settings SettingsSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := settings.Current()
			path := r.URL.Path

			if st.MaintenanceMode && !exempt(path) {
				gateJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"status":          "maintenance",
					"error":           "The site is under maintenance. Please try again later.",
					"maintenanceMode": true,
				})
				return
			}
			switch {
			case !st.EnableUserRegistration && path == "/api/auth/register" && r.Method == http.MethodPost:
				gateJSON(w, http.StatusForbidden, map[string]interface{}{"error": "User registration is currently disabled."})
				return
			case !st.EnableComments && strings.Contains(path, "/comments"):
				gateJSON(w, http.StatusForbidden, map[string]interface{}{"error": "Comments are currently disabled."})
				return
			case !st.EnableRatings && strings.Contains(path, "/ratings"):
				gateJSON(w, http.StatusForbidden, map[string]interface{}{"error": "Ratings are currently disabled."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func exempt(path string) bool {
	for _, prefix := range maintenanceExempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
