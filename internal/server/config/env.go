package config

import "strings"

// parseEnv overlays values from environment variables. Empty variables are
// ignored.
func parseEnv(config *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}

	if port := getenv("PORT"); port != "" {
		if strings.Contains(port, ":") {
			config.ListenAddr = port
		} else {
			config.ListenAddr = ":" + port
		}
	}

	vars := map[string]*string{
		"BASE_URL":               &config.BaseURL,
		"DB_TYPE":                &config.StoreType,
		"DB_URI":                 &config.DatabaseDSN,
		"JWT_SECRET":             &config.SecretKey,
		"GOOGLE_CLIENT_ID":       &config.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":   &config.GoogleClientSecret,
		"ONEDRIVE_CLIENT_ID":     &config.OneDriveClientID,
		"ONEDRIVE_CLIENT_SECRET": &config.OneDriveClientSecret,
		"LOG_LEVEL":              &config.LogLevel,
		"LOG_FORMAT":             &config.LogFormat,
	}
	for name, dst := range vars {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
}
