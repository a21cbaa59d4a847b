package config

import (
	"os"
	"strconv"
)

type Environment struct {
	IsDevelopment bool
	Domain        string
	CookieSecure  bool
	TokenMinutes  int
}

var Env Environment

func init() {
	// Get domain from environment variable
	domain := os.Getenv("COOKIE_DOMAIN")

	// If no domain is set, we're in development
	isDev := domain == ""
	if isDev {
		domain = "localhost"
	}

	// Access token lifetime, 24 hours by default
	minutes := 1440
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			minutes = parsed
		}
	}

	Env = Environment{
		IsDevelopment: isDev,
		Domain:        domain,
		CookieSecure:  !isDev,
		TokenMinutes:  minutes,
	}
}
