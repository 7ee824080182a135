// Package config loads assetsync settings from .env files, the environment
// and an optional YAML file, and validates them once at startup.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
)

// Config is the validated settings for one sync run. The env tag names the
// variable each field is read from and is used in validation messages.
type Config struct {
	// Snipe-IT
	APIToken          string   `yaml:"api_token" env:"API_TOKEN" validate:"required"`
	EndpointURL       string   `yaml:"endpoint_url" env:"ENDPOINT_URL" validate:"required,url"`
	AssetTagPrefix    string   `yaml:"asset_tag_prefix" env:"SNIPE_IT_ASSET_TAG_PREFIX"`
	ActiveStatus      string   `yaml:"active_status" env:"SNIPE_IT_ACTIVE_STATUS" validate:"required"`
	DefaultModelID    int      `yaml:"default_model_id" env:"SNIPE_IT_DEFAULT_MODEL_ID" validate:"gt=0"`
	DefaultStatusID   int      `yaml:"default_status_id" env:"SNIPE_IT_DEFAULT_STATUS_ID" validate:"gt=0"`
	DefaultCategoryID int      `yaml:"default_category_id" env:"SNIPE_IT_DEFAULT_CATEGORY_ID" validate:"gte=0"`
	FieldsetID        int      `yaml:"fieldset_id" env:"SNIPE_IT_FIELDSET_ID" validate:"gte=0"`
	SkipStatuses      []string `yaml:"skip_statuses" env:"SKIP_STATUSES"`
	ResolveUsers      bool     `yaml:"resolve_users" env:"RESOLVE_USERS"`
	Fields            Fields   `yaml:"fields"`

	// Google Directory
	DelegatedAdmin     string `yaml:"delegated_admin" env:"DELEGATED_ADMIN" validate:"required,email"`
	ServiceAccountFile string `yaml:"service_account_file" env:"GOOGLE_SERVICE_ACCOUNT_FILE" validate:"required"`
	CustomerID         string `yaml:"customer_id" env:"GOOGLE_CUSTOMER_ID" validate:"required"`
	OrgUnit            string `yaml:"org_unit" env:"GOOGLE_ORG_UNIT"`
	PageSize           int    `yaml:"page_size" env:"PAGE_SIZE" validate:"gte=1,lte=300"`

	// Gemini
	GeminiAPIKey    string   `yaml:"gemini_api_key" env:"Gemini_APIKEY" validate:"required"`
	GeminiModel     string   `yaml:"gemini_model" env:"GEMINI_MODEL" validate:"required"`
	Categories      []string `yaml:"categories" env:"GEMINI_CATEGORIES"`
	DefaultCategory string   `yaml:"default_category" env:"GEMINI_DEFAULT_CATEGORY" validate:"required"`

	// Transport
	MaxRetries        int           `yaml:"max_retries" env:"MAX_RETRIES" validate:"gte=1,lte=20"`
	RetryDelay        time.Duration `yaml:"retry_delay" env:"RETRY_DELAY_SECONDS" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND" validate:"gte=0"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT_SECONDS" validate:"gt=0"`

	DryRun bool `yaml:"dry_run" env:"DRY_RUN"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" validate:"oneof=auto json console text"`
	LogOutput string `yaml:"log_output" env:"LOG_OUTPUT"`

	// ConfigFile is the YAML file that was read, empty when none was found.
	ConfigFile string `yaml:"-"`
}

// Fields names the Snipe-IT custom field columns. Empty disables the field.
type Fields struct {
	MAC      string `yaml:"mac" env:"SNIPE_IT_FIELD_MAC_ADDRESS"`
	SyncDate string `yaml:"sync_date" env:"SNIPE_IT_FIELD_SYNC_DATE"`
	IP       string `yaml:"ip" env:"SNIPE_IT_FIELD_IP_ADDRESS"`
	User     string `yaml:"user" env:"SNIPE_IT_FIELD_USER"`
	EOL      string `yaml:"eol" env:"SNIPE_IT_FIELD_EOL_DATE"`
	Storage  string `yaml:"storage" env:"SNIPE_IT_FIELD_STORAGE"`
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. When empty, .assetsync.yaml is
	// searched in the working directory and the home directory.
	ConfigFile string
	// EnvFiles are loaded before reading the environment. Existing variables
	// are never overwritten. Nil means .env and .env.local.
	EnvFiles []string
	// SkipFileChecks disables the service-account file existence check.
	SkipFileChecks bool
}

// binding maps a config key to the environment variables that feed it.
type binding struct {
	key  string
	envs []string
}

var bindings = []binding{
	{"api_token", []string{"API_TOKEN"}},
	{"endpoint_url", []string{"ENDPOINT_URL"}},
	{"asset_tag_prefix", []string{"SNIPE_IT_ASSET_TAG_PREFIX"}},
	{"active_status", []string{"SNIPE_IT_ACTIVE_STATUS"}},
	{"default_model_id", []string{"SNIPE_IT_DEFAULT_MODEL_ID"}},
	{"default_status_id", []string{"SNIPE_IT_DEFAULT_STATUS_ID"}},
	{"default_category_id", []string{"SNIPE_IT_DEFAULT_CATEGORY_ID"}},
	{"fieldset_id", []string{"SNIPE_IT_FIELDSET_ID"}},
	{"skip_statuses", []string{"SKIP_STATUSES"}},
	{"resolve_users", []string{"RESOLVE_USERS"}},
	{"fields.mac", []string{"SNIPE_IT_FIELD_MAC_ADDRESS"}},
	{"fields.sync_date", []string{"SNIPE_IT_FIELD_SYNC_DATE"}},
	{"fields.ip", []string{"SNIPE_IT_FIELD_IP_ADDRESS"}},
	{"fields.user", []string{"SNIPE_IT_FIELD_USER"}},
	{"fields.eol", []string{"SNIPE_IT_FIELD_EOL_DATE"}},
	{"fields.storage", []string{"SNIPE_IT_FIELD_STORAGE"}},
	{"delegated_admin", []string{"DELEGATED_ADMIN"}},
	{"service_account_file", []string{"GOOGLE_SERVICE_ACCOUNT_FILE"}},
	{"customer_id", []string{"GOOGLE_CUSTOMER_ID"}},
	{"org_unit", []string{"GOOGLE_ORG_UNIT"}},
	{"page_size", []string{"PAGE_SIZE"}},
	{"gemini_api_key", []string{"Gemini_APIKEY", "GEMINI_API_KEY"}},
	{"gemini_model", []string{"GEMINI_MODEL"}},
	{"categories", []string{"GEMINI_CATEGORIES"}},
	{"default_category", []string{"GEMINI_DEFAULT_CATEGORY"}},
	{"max_retries", []string{"MAX_RETRIES"}},
	{"retry_delay_seconds", []string{"RETRY_DELAY_SECONDS"}},
	{"requests_per_second", []string{"REQUESTS_PER_SECOND"}},
	{"http_timeout_seconds", []string{"HTTP_TIMEOUT_SECONDS"}},
	{"dry_run", []string{"DRY_RUN"}},
	{"debug", []string{"DEBUG"}},
	{"log_level", []string{"LOG_LEVEL"}},
	{"log_format", []string{"LOG_FORMAT"}},
	{"log_output", []string{"LOG_OUTPUT"}},
}

// Load reads configuration in order of precedence:
// 1. Environment variables
// 2. .env files
// 3. Config file (.assetsync.yaml)
// 4. Defaults
//
// Command-line flags are applied by the caller afterwards. The returned
// Config is validated; every problem is reported in one *errors.ConfigError.
func Load(opts LoadOptions) (*Config, error) {
	loadEnvFiles(opts.EnvFiles)

	v := viper.New()
	setDefaults(v)
	for _, b := range bindings {
		args := append([]string{b.key}, b.envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, errors.NewConfigError("env", "failed to bind "+b.key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("file", "failed to read "+opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(".assetsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		// A missing default file is fine.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("file", "failed to read config file", err)
			}
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(!opts.SkipFileChecks); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env files in order; .env.local overrides nothing that
// .env or the environment already set.
func loadEnvFiles(files []string) {
	if files == nil {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("asset_tag_prefix", constants.DefaultAssetTagPrefix)
	v.SetDefault("active_status", constants.ActiveStatus)
	v.SetDefault("default_model_id", constants.DefaultModelID)
	v.SetDefault("default_status_id", constants.DefaultStatusID)
	v.SetDefault("default_category_id", 0)
	v.SetDefault("fieldset_id", constants.DefaultFieldsetID)
	v.SetDefault("fields.mac", constants.DefaultMACField)
	v.SetDefault("fields.sync_date", constants.DefaultSyncDateField)
	v.SetDefault("fields.ip", constants.DefaultIPField)
	v.SetDefault("fields.user", constants.DefaultUserField)
	v.SetDefault("fields.eol", constants.DefaultEOLField)
	v.SetDefault("fields.storage", "")
	v.SetDefault("customer_id", constants.DefaultCustomer)
	v.SetDefault("page_size", constants.DefaultPageSize)
	v.SetDefault("gemini_model", constants.DefaultGeminiModel)
	v.SetDefault("categories", constants.DefaultCategories)
	v.SetDefault("default_category", constants.DefaultCategory)
	v.SetDefault("max_retries", constants.DefaultMaxRetries)
	v.SetDefault("retry_delay_seconds", int(constants.DefaultRetryDelay/time.Second))
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("http_timeout_seconds", int(constants.DefaultHTTPTimeout/time.Second))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		APIToken:          strings.TrimSpace(v.GetString("api_token")),
		EndpointURL:       strings.TrimRight(strings.TrimSpace(v.GetString("endpoint_url")), "/"),
		AssetTagPrefix:    v.GetString("asset_tag_prefix"),
		ActiveStatus:      v.GetString("active_status"),
		DefaultModelID:    v.GetInt("default_model_id"),
		DefaultStatusID:   v.GetInt("default_status_id"),
		DefaultCategoryID: v.GetInt("default_category_id"),
		FieldsetID:        v.GetInt("fieldset_id"),
		SkipStatuses:      stringList(v, "skip_statuses"),
		ResolveUsers:      v.GetBool("resolve_users"),
		Fields: Fields{
			MAC:      v.GetString("fields.mac"),
			SyncDate: v.GetString("fields.sync_date"),
			IP:       v.GetString("fields.ip"),
			User:     v.GetString("fields.user"),
			EOL:      v.GetString("fields.eol"),
			Storage:  v.GetString("fields.storage"),
		},
		DelegatedAdmin:     strings.TrimSpace(v.GetString("delegated_admin")),
		ServiceAccountFile: v.GetString("service_account_file"),
		CustomerID:         v.GetString("customer_id"),
		OrgUnit:            v.GetString("org_unit"),
		PageSize:           v.GetInt("page_size"),
		GeminiAPIKey:       strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiModel:        v.GetString("gemini_model"),
		Categories:         stringList(v, "categories"),
		DefaultCategory:    v.GetString("default_category"),
		MaxRetries:         v.GetInt("max_retries"),
		RetryDelay:         seconds(v, "retry_delay_seconds"),
		RequestsPerSecond:  v.GetFloat64("requests_per_second"),
		HTTPTimeout:        seconds(v, "http_timeout_seconds"),
		DryRun:             v.GetBool("dry_run"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		LogFormat:          strings.ToLower(v.GetString("log_format")),
		LogOutput:          v.GetString("log_output"),
		ConfigFile:         v.ConfigFileUsed(),
	}
	if v.GetBool("debug") {
		cfg.LogLevel = "debug"
	}
	return cfg
}

// stringList reads a list from YAML or a comma-separated env value.
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// seconds reads a whole or fractional number of seconds.
func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

// ApplyFlags overrides loaded values with explicitly set command-line flags.
func (c *Config) ApplyFlags(dryRun *bool, pageSize *int, logLevel *string) {
	if dryRun != nil {
		c.DryRun = *dryRun
	}
	if pageSize != nil {
		c.PageSize = *pageSize
	}
	if logLevel != nil && *logLevel != "" {
		c.LogLevel = strings.ToLower(*logLevel)
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.APIToken = mask(c.APIToken)
	out.GeminiAPIKey = mask(c.GeminiAPIKey)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-2:]
}
