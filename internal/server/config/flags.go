package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g. ":3000")
//	-u string   public base URL
//	-s string   store type (memory|postgres)
//	-d string   PostgreSQL DSN
//	-k string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-p duration upstream call timeout (e.g. "30s")
//	-l string   log level
//
// Arguments not listed above are ignored, so -c/-config and flags owned by
// other components do not cause a parse error.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")
	fs.StringVar(&config.StoreType, "s", config.StoreType, "store type (memory|postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "secret key")
	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.DurationVar(&config.ProviderTimeout, "p", config.ProviderTimeout, "upstream call timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, flagx.FlagNames(fs))); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		}
	})
	return nil
}
