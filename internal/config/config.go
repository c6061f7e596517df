// Package config loads the YAML configuration of the store and its commands.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

const SupportedVersion = "1"

// Config represents the complete configuration structure
type Config struct {
	Version  string         `yaml:"version" default:"1"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Images   ImagesConfig   `yaml:"images"`
	Content  ContentConfig  `yaml:"content"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info" env:"FOLIO_LOG_LEVEL"`
}

type DatabaseConfig struct {
	Path         string        `yaml:"path" default:"./folio.db" env:"FOLIO_DATABASE_PATH"`
	MaxOpenConns int           `yaml:"max_open_conns" default:"4"`
	BusyTimeout  time.Duration `yaml:"busy_timeout" default:"5s"`
}

type StoreConfig struct {
	// Edits to an unpublished draft younger than this are merged into it.
	CoalesceWindow time.Duration `yaml:"coalesce_window" default:"5m"`
	StaticGroups   []string      `yaml:"static_groups" default:"header,footer"`
	Compression    string        `yaml:"compression" default:"zstd"`
}

const (
	ImageBackendDatabase = "database"
	ImageBackendS3       = "s3"
)

type ImagesConfig struct {
	Backend string   `yaml:"backend" default:"database" env:"FOLIO_IMAGES_BACKEND"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket" default:"" env:"FOLIO_S3_BUCKET"`
	Endpoint string `yaml:"endpoint" default:"" env:"FOLIO_S3_ENDPOINT"`
	Region   string `yaml:"region" default:"auto"`
	Prefix   string `yaml:"prefix" default:"images"`

	// Credentials are only read from the environment.
	AccessKeyID     string `yaml:"-" env:"FOLIO_S3_ACCESS_KEY_ID"`
	AccessKeySecret string `yaml:"-" env:"FOLIO_S3_ACCESS_KEY_SECRET"`
}

type ContentConfig struct {
	PostsPerPage int    `yaml:"posts_per_page" default:"50"`
	Renderer     string `yaml:"renderer" default:"mmark"`
	SyntaxTheme  string `yaml:"syntax_theme" default:"gruvbox"`
}

var AppConfig *Config

// Load reads path on top of the defaults and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(config, os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig loads path into AppConfig.
func LoadConfig(path string) error {
	config, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = config
	return nil
}

func (c *Config) Validate() error {
	if c.Version != SupportedVersion {
		return fmt.Errorf("unsupported configuration version %q", c.Version)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Store.CoalesceWindow < 0 {
		return fmt.Errorf("store.coalesce_window must not be negative")
	}
	if len(c.Store.StaticGroups) == 0 {
		return fmt.Errorf("store.static_groups must name at least one group")
	}
	seen := make(map[string]bool, len(c.Store.StaticGroups))
	for _, g := range c.Store.StaticGroups {
		if g == "" || seen[g] {
			return fmt.Errorf("store.static_groups contains an empty or duplicate group %q", g)
		}
		seen[g] = true
	}
	switch c.Store.Compression {
	case "zstd", "gzip", "none":
	default:
		return fmt.Errorf("unknown store.compression %q", c.Store.Compression)
	}
	switch c.Images.Backend {
	case ImageBackendDatabase:
	case ImageBackendS3:
		if c.Images.S3.Bucket == "" {
			return fmt.Errorf("images.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown images.backend %q", c.Images.Backend)
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	walkTagged(config, "default", func(_ string) (string, bool) { return "", false }, true)
}

func applyEnv(config interface{}, lookup func(string) (string, bool)) {
	walkTagged(config, "env", lookup, false)
}

// walkTagged sets every field carrying tag. With literal set the tag value is
// the field value, otherwise it is a key resolved through lookup.
func walkTagged(config interface{}, tag string, lookup func(string) (string, bool), literal bool) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively walk nested structs
		if field.Kind() == reflect.Struct {
			walkTagged(field.Addr().Interface(), tag, lookup, literal)
			continue
		}

		value := fieldType.Tag.Get(tag)
		if value == "" {
			continue
		}
		if !literal {
			var ok bool
			if value, ok = lookup(value); !ok {
				continue
			}
		} else if field.Kind() == reflect.Slice && field.Len() > 0 {
			continue
		}

		if err := setField(field, value); err != nil {
			configLogger.Warn().
				Err(err).
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported value for field")
		}
	}
}

func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		val, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(val)
	case reflect.Int, reflect.Int64:
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(val)
	case reflect.Float64:
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(val)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for j, part := range parts {
			slice.Index(j).SetString(strings.TrimSpace(part))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
