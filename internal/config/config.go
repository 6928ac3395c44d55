package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robotomize/eurofx/internal/strutil"
	"github.com/spf13/viper"
)

const envPrefix = "EUROFX"

const (
	keyFeedURL        = "FEED_URL"
	keyFeedFormat     = "FEED_FORMAT"
	keyRequestTimeout = "REQUEST_TIMEOUT"
	keyRetryNum       = "RETRY_NUM"
	keyRetryDuration  = "RETRY_DURATION"
	keyBaseCurrency   = "BASE_CURRENCY"
	keyLogLevel       = "LOG_LEVEL"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds the settings of the command line client. Every field is read
// from an EUROFX_ prefixed environment variable, e.g. EUROFX_FEED_URL
type Config struct {
	FeedURL        string        `validate:"required,url"`
	FeedFormat     string        `validate:"oneof=xml csv"`
	RequestTimeout time.Duration `validate:"gt=0"`
	RetryNum       uint64
	RetryDuration  time.Duration `validate:"gt=0"`
	BaseCurrency   string        `validate:"len=3,alpha,uppercase"`
	LogLevel       string        `validate:"oneof=debug info warn warning error none"`
}

// Load reads the configuration from the environment. The given env files
// (.env when none) are loaded first if present; variables already set in
// the environment win over them
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)

	v.SetDefault(keyFeedURL, "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist-90d.xml")
	v.SetDefault(keyFeedFormat, "xml")
	v.SetDefault(keyRequestTimeout, "10s")
	v.SetDefault(keyRetryNum, 1)
	v.SetDefault(keyRetryDuration, "5s")
	v.SetDefault(keyBaseCurrency, "EUR")
	v.SetDefault(keyLogLevel, "info")

	v.AutomaticEnv()

	cfg := &Config{
		FeedURL:        v.GetString(keyFeedURL),
		FeedFormat:     v.GetString(keyFeedFormat),
		RequestTimeout: v.GetDuration(keyRequestTimeout),
		RetryNum:       v.GetUint64(keyRetryNum),
		RetryDuration:  v.GetDuration(keyRetryDuration),
		BaseCurrency:   strutil.NormalizeCode(v.GetString(keyBaseCurrency)),
		LogLevel:       strings.ToLower(strutil.TrimToken(v.GetString(keyLogLevel))),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s_%s: failed on %q", ErrInvalidConfig, envPrefix, envKey(verrs[0].Field()), verrs[0].Tag())
		}

		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

var fieldKeys = map[string]string{
	"FeedURL":        keyFeedURL,
	"FeedFormat":     keyFeedFormat,
	"RequestTimeout": keyRequestTimeout,
	"RetryDuration":  keyRetryDuration,
	"BaseCurrency":   keyBaseCurrency,
	"LogLevel":       keyLogLevel,
}

func envKey(field string) string {
	if k, ok := fieldKeys[field]; ok {
		return k
	}

	return field
}
