package config

// loader.go fills a Config from the environment and checks it.
//
// Fields opt in with struct tags:
//
//	env      primary variable name
//	envAlt   fallback name (DB_URL for DATABASE_URL)
//	default  value used when neither variable is set
//	required fail Load instead of applying a default
//
// Supported field kinds are string, int, int64, time.Duration, bool and
// comma-separated []string. Nested section structs are walked recursively.
// The server and the CLI share this loader; the CLI overrides a few fields
// from flags after Load returns.

import (
	"fmt"
	"net/netip"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadStruct populates every tagged field of v, descending into sections.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		name, value, err := lookup(field)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}
	return nil
}

// lookup returns the raw value for a tagged field: the primary variable,
// then the alternate, then the default. Untagged fields yield "".
func lookup(field reflect.StructField) (name, value string, err error) {
	name = field.Tag.Get("env")
	if name == "" {
		return "", "", nil
	}

	for _, candidate := range []string{name, field.Tag.Get("envAlt")} {
		if candidate == "" {
			continue
		}
		if value = os.Getenv(candidate); value != "" {
			return candidate, value, nil
		}
	}

	if field.Tag.Get("required") == "true" {
		return name, "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return name, field.Tag.Get("default"), nil
}

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int, field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		field.Set(reflect.ValueOf(splitList(value)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// splitList splits a comma-separated list, trimming entries and dropping
// blanks and repeats.
func splitList(value string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.Server.validate()...)
	errs = append(errs, c.Database.validate()...)
	errs = append(errs, c.Upload.validate()...)
	errs = append(errs, c.Sheet.validate()...)
	errs = append(errs, c.Security.validate()...)
	errs = append(errs, c.Logging.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (s ServerConfig) validate() []string {
	var errs []string
	if s.Port <= 0 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", s.Port))
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		errs = append(errs, "SERVER_*_TIMEOUT values must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	return errs
}

// databaseSchemes are the URL schemes the store can open. Anything else
// with a "://" would otherwise be taken for a SQLite file name.
var databaseSchemes = []string{"postgres://", "postgresql://", "sqlite:", "file:"}

func (d DatabaseConfig) validate() []string {
	var errs []string

	url := strings.TrimSpace(d.URL)
	switch {
	case url == "":
		errs = append(errs, "DATABASE_URL must not be empty")
	case strings.Contains(url, "://") && !hasAnyPrefix(strings.ToLower(url), databaseSchemes):
		scheme, _, _ := strings.Cut(url, "://")
		errs = append(errs, fmt.Sprintf("DATABASE_URL scheme %q is not supported; use postgres://, sqlite: or a file path", scheme))
	}

	if d.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if d.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if d.MaxConns < d.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns))
	}
	return errs
}

func (u UploadConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(u.Dir) == "" {
		errs = append(errs, "UPLOAD_DIR must not be empty")
	}
	if u.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if u.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if u.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if u.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	return errs
}

func (s SheetConfig) validate() []string {
	if len(s.ExclusionKeywords) == 0 {
		return []string{"SHEET_EXCLUSION_KEYWORDS must name at least one keyword"}
	}
	return nil
}

func (s SecurityConfig) validate() []string {
	var errs []string
	if s.RequireAPIKey && len(s.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}
	for _, entry := range s.TrustedProxies {
		if _, err := netip.ParsePrefix(entry); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(entry); err != nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP address or CIDR", entry))
		}
	}
	return errs
}

func (l LoggingConfig) validate() []string {
	var errs []string
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", l.Format))
	}
	return errs
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// String renders the config for the startup log. The database URL is
// masked and API keys are only counted.
func (c *Config) String() string {
	sections := []string{
		fmt.Sprintf("Server: {Addr: %q}", c.Server.Addr()),
		fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}",
			c.Database.MaxConns, c.Database.MinConns),
		fmt.Sprintf("Upload: {Dir: %q, MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s}",
			c.Upload.Dir, c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.Timeout),
		fmt.Sprintf("Sheet: {ExclusionKeywords: %v}", c.Sheet.ExclusionKeywords),
		fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured, TrustedProxies: %v}",
			c.Security.RequireAPIKey, len(c.Security.APIKeys), c.Security.TrustedProxies),
		fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format),
	}
	return "Config{" + strings.Join(sections, ", ") + "}"
}
