package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/unidrive/internal/flagx"
	"github.com/dmitrijs2005/unidrive/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "30s" and integer nanoseconds are accepted. Only
// the fields present in the file override the current values.
type JsonConfig struct {
	ListenAddr                  *string         `json:"listen_addr"`
	BaseURL                     *string         `json:"base_url"`
	StoreType                   *string         `json:"store_type"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	GoogleClientID              *string         `json:"google_client_id"`
	GoogleClientSecret          *string         `json:"google_client_secret"`
	OneDriveClientID            *string         `json:"onedrive_client_id"`
	OneDriveClientSecret        *string         `json:"onedrive_client_secret"`
	ProviderTimeout             *timex.Duration `json:"provider_timeout"`
	RateLimit                   *float64        `json:"rate_limit"`
	RateBurst                   *int            `json:"rate_burst"`
	LogLevel                    *string         `json:"log_level"`
	LogFormat                   *string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.StoreType, c.StoreType)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.GoogleClientSecret, c.GoogleClientSecret)
	setString(&config.OneDriveClientID, c.OneDriveClientID)
	setString(&config.OneDriveClientSecret, c.OneDriveClientSecret)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.ProviderTimeout != nil {
		config.ProviderTimeout = c.ProviderTimeout.Duration
	}
	if c.RateLimit != nil {
		config.RateLimit = *c.RateLimit
	}
	if c.RateBurst != nil {
		config.RateBurst = *c.RateBurst
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
