package config

var defaults = map[string]any{
	"secret":          "",
	"log_level":       "info",
	"listen_addr":     ":8080",
	"admin_token_ttl": 60,

	"nonce_store": "memory",

	"allowed_networks": "",
	"cors_origins":     "",

	"rbac.policy_file": "",
	"rbac.admins":      []string{DEFAULT_ADMIN_EMAIL},

	"google.client_id":     "",
	"google.client_secret": "",
	"google.redirect_uri":  "",
	"google.calendar_id":   "primary",
	"google.token_url":     "",
	"google.api_endpoint":  "",
	"google.state_ttl":     600,

	"booking.window_start": "19:00",
	"booking.window_end":   "21:00",
	"booking.slot_minutes": 30,
	"booking.timezone":     "Europe/Berlin",
	"booking.reset_delay":  "3s",
	"booking.server_url":   "http://localhost:8080",
	"booking.cache_file":   "./data/calendar-cache.json",

	"email.host":      "",
	"email.port":      25,
	"email.username":  "",
	"email.password":  "",
	"email.from":      "noreply@informatik-ai.de",
	"email.notify_to": "",

	"storage.type":         "file",
	"storage.file.path":    "./data/calendar-data.json",
	"storage.sqlite.path":  "./data/storage.db",
	"storage.postgres.dsn": "",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
