package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	toml "github.com/pelletier/go-toml/v2"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("fetchq: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// Config holds the resolved CLI configuration.
type Config struct {
	Method    string   `toml:"method" validate:"required"`
	Headers   []string `toml:"headers"`
	Body      string   `toml:"body"`
	Form      []string `toml:"form"`
	FormFiles []string `toml:"form_files"`

	OutputDir string `toml:"output_dir"`
	Sha256    string `toml:"sha256" validate:"omitempty,len=64,hexadecimal"`

	TotalConns int `toml:"total_conns" validate:"min=0"`
	HostConns  int `toml:"host_conns" validate:"min=0"`
	RPS        int `toml:"rps" validate:"min=0,required_with=Burst"`
	Burst      int `toml:"burst" validate:"min=0,required_with=RPS"`

	Timeout           time.Duration `toml:"timeout" validate:"min=0"`
	UserAgent         string        `toml:"user_agent"`
	NoFollowRedirects bool          `toml:"no_follow_redirects"`

	LogLevel  string `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `toml:"log_format" validate:"oneof=text json"`
	LogFile   string `toml:"log_file"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Method:    http.MethodGet,
		Timeout:   60 * time.Second,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate checks the configuration against its declared tags plus the
// cross-field rules the tags can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Field(),
				Err:   customErrForTag(verror.Tag(), verror),
			})
		}
		return fields
	}

	if c.Sha256 != "" && c.OutputDir == "" {
		return fmt.Errorf("sha256 verification requires output_dir")
	}
	if c.OutputDir != "" && c.Method != http.MethodGet {
		return fmt.Errorf("output_dir supports GET only, got %s", c.Method)
	}

	return nil
}

// FieldError represents a single validation error for a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface, returning a human-readable
// summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	default:
		return verror.Translate(translator)
	}
}

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	Method    string   `toml:"method"`
	Headers   []string `toml:"headers"`
	Body      string   `toml:"body"`
	Form      []string `toml:"form"`
	FormFiles []string `toml:"form_files"`

	OutputDir string `toml:"output_dir"`
	Sha256    string `toml:"sha256"`

	TotalConns int `toml:"total_conns"`
	HostConns  int `toml:"host_conns"`
	RPS        int `toml:"rps"`
	Burst      int `toml:"burst"`

	Timeout           string `toml:"timeout"`
	UserAgent         string `toml:"user_agent"`
	NoFollowRedirects *bool  `toml:"no_follow_redirects"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// loadFileConfig reads and parses a TOML config file from the given path.
func loadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// defaultConfigPath returns ~/.fetchq/config.toml if the user home
// directory is accessible.
func defaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".fetchq", "config.toml")
	}
	return ""
}

// fileExists checks if a file exists at the given path.
func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// applyFileConfig applies configuration from a file to the Config
// struct. It respects flags that have been explicitly set.
func applyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("method", fc.Method, &cfg.Method)
	s.setStrings("header", fc.Headers, &cfg.Headers)
	s.setString("body", fc.Body, &cfg.Body)
	s.setStrings("form", fc.Form, &cfg.Form)
	s.setStrings("form-file", fc.FormFiles, &cfg.FormFiles)

	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("sha256", fc.Sha256, &cfg.Sha256)

	s.setInt("total-conns", fc.TotalConns, &cfg.TotalConns)
	s.setInt("host-conns", fc.HostConns, &cfg.HostConns)
	s.setInt("rps", fc.RPS, &cfg.RPS)
	s.setInt("burst", fc.Burst, &cfg.Burst)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setBool("no-follow-redirects", fc.NoFollowRedirects, &cfg.NoFollowRedirects)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)

	return nil
}

// applyEnvConfig applies configuration from environment variables
// (FETCHQ_*). It respects flags that have been explicitly set. List
// settings like headers and form fields are file- and flag-only.
func applyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("method", os.Getenv("FETCHQ_METHOD"), &cfg.Method)
	s.setString("body", os.Getenv("FETCHQ_BODY"), &cfg.Body)

	s.setString("output-dir", os.Getenv("FETCHQ_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("sha256", os.Getenv("FETCHQ_SHA256"), &cfg.Sha256)

	if err := s.setIntFromString("total-conns", os.Getenv("FETCHQ_TOTAL_CONNS"), &cfg.TotalConns); err != nil {
		return err
	}
	if err := s.setIntFromString("host-conns", os.Getenv("FETCHQ_HOST_CONNS"), &cfg.HostConns); err != nil {
		return err
	}
	if err := s.setIntFromString("rps", os.Getenv("FETCHQ_RPS"), &cfg.RPS); err != nil {
		return err
	}
	if err := s.setIntFromString("burst", os.Getenv("FETCHQ_BURST"), &cfg.Burst); err != nil {
		return err
	}

	if err := s.setDuration("timeout", os.Getenv("FETCHQ_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	s.setString("user-agent", os.Getenv("FETCHQ_USER_AGENT"), &cfg.UserAgent)
	s.setBoolFromString("no-follow-redirects", os.Getenv("FETCHQ_NO_FOLLOW_REDIRECTS"), &cfg.NoFollowRedirects)

	s.setString("log-level", os.Getenv("FETCHQ_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("FETCHQ_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("log-file", os.Getenv("FETCHQ_LOG_FILE"), &cfg.LogFile)

	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not
// changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if
// valid. Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
