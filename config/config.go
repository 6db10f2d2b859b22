// config loads the soup configuration from yaml and the environment.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig  `yaml:"log"`
	HTTP    HTTPConfig `yaml:"http"`
	Jobs    int        `yaml:"jobs" env:"SOUP_JOBS"`
	DB      string     `yaml:"db" env:"SOUP_DB"`
	Queries []Query    `yaml:"queries"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"SOUP_LOG_LEVEL"`
	Format string `yaml:"format" env:"SOUP_LOG_FORMAT"`
}

type HTTPConfig struct {
	UserAgent string        `yaml:"userAgent" env:"SOUP_USER_AGENT"`
	Retries   int           `yaml:"retries" env:"SOUP_HTTP_RETRIES"`
	CacheDir  string        `yaml:"cacheDir" env:"SOUP_CACHE_DIR"`
	RateLimit time.Duration `yaml:"rateLimit" env:"SOUP_RATE_LIMIT"`
	Timeout   time.Duration `yaml:"timeout" env:"SOUP_HTTP_TIMEOUT"`
}

// Query extracts the text, outer html or attribute Attr of every node
// matched by Selector.
type Query struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`
	Output   string `yaml:"output,omitempty"`
}

var outputs = map[string]bool{"text": true, "html": true, "attr": true}
var formats = map[string]bool{"console": true, "json": true}
var durationType = reflect.TypeOf(time.Duration(0))

func Default() Config {
	return Config{
		Log:  LogConfig{Level: "info", Format: "console"},
		HTTP: HTTPConfig{UserAgent: "soup", Retries: 2, Timeout: 30 * time.Second},
		Jobs: 4,
	}
}

// Load reads the yaml file at path on top of Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		d := yaml.NewDecoder(bytes.NewReader(bs))
		d.KnownFields(true)
		if err := d.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return c, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	}
	if err := applyEnv(reflect.ValueOf(&c).Elem()); err != nil {
		return c, err
	}
	for i := range c.Queries {
		if c.Queries[i].Output == "" {
			c.Queries[i].Output = "text"
		}
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	errs := []error{}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	if c.HTTP.Retries < 0 {
		errs = append(errs, fmt.Errorf("http.retries must not be negative, got %d", c.HTTP.Retries))
	}
	if !formats[c.Log.Format] {
		errs = append(errs, fmt.Errorf("log.format must be one of %s, got %q", keys(formats), c.Log.Format))
	}
	names := map[string]bool{}
	for i, q := range c.Queries {
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("query %d: %w", i, err))
		} else if names[q.Name] {
			errs = append(errs, fmt.Errorf("query %d: duplicate name %q", i, q.Name))
		}
		names[q.Name] = true
	}
	return errors.Join(errs...)
}

func (q Query) Validate() error {
	switch {
	case q.Name == "":
		return fmt.Errorf("name is required")
	case q.Selector == "":
		return fmt.Errorf("selector is required")
	case !outputs[q.Output]:
		return fmt.Errorf("output must be one of %s, got %q", keys(outputs), q.Output)
	case q.Output == "attr" && q.Attr == "":
		return fmt.Errorf("attr is required for output attr")
	}
	return nil
}

// Logger builds a zap logger writing to stderr.
func (l LogConfig) Logger() (*zap.Logger, error) {
	return l.New(zapcore.Lock(os.Stderr))
}

func (l LogConfig) New(w zapcore.WriteSyncer) (*zap.Logger, error) {
	if l.Level == "none" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	var enc zapcore.Encoder
	switch l.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console", "":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeCaller = nil
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, fmt.Errorf("log.format must be one of %s, got %q", keys(formats), l.Format)
	}
	return zap.New(zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(level))).Named("soup"), nil
}

func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f, fv := t.Field(i), v.Field(i)
		if f.Type.Kind() == reflect.Struct {
			if err := applyEnv(fv); err != nil {
				return err
			}
			continue
		}
		name, ok := f.Tag.Lookup("env")
		if !ok {
			continue
		}
		s, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		switch {
		case f.Type == durationType:
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("failed to parse %s(%s) from %q: %w", name, f.Type, s, err)
			}
			fv.SetInt(int64(d))
		case f.Type.Kind() == reflect.String:
			fv.SetString(s)
		default:
			if err := json.Unmarshal([]byte(s), fv.Addr().Interface()); err != nil {
				return fmt.Errorf("failed to unmarshal %s(%s) from %q", name, f.Type, s)
			}
		}
	}
	return nil
}

func keys(m map[string]bool) string {
	ks := maps.Keys(m)
	slices.Sort(ks)
	return strings.Join(ks, "|")
}
