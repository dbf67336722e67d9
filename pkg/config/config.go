package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultConfigFile = "/config/shelf.yaml"

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"3689"`

	// StorageDir is the managed storage root. Imported books, normalized text
	// files and covers all live underneath it.
	StorageDir string `koanf:"storage_dir" default:"/data/shelf"`

	// BrowseRoot bounds the directories the import browser will list.
	BrowseRoot string `koanf:"browse_root" default:"/"`

	WorkerProcesses    int           `koanf:"worker_processes" default:"2"`
	WorkerPollInterval time.Duration `koanf:"worker_poll_interval" default:"2s"`

	CoverMaxWidth   int  `koanf:"cover_max_width" default:"600"`
	RenderPDFCovers bool `koanf:"render_pdf_covers" default:"true"`

	// ReaderCharsPerPage overrides the page size derived from font size and
	// margins for text-flow formats. Zero means derive it.
	ReaderCharsPerPage  int `koanf:"reader_chars_per_page"`
	ReaderMaxSessions   int `koanf:"reader_max_sessions" default:"8"`
	SearchSnippetRadius int `koanf:"search_snippet_radius" default:"40"`
	SearchMaxResults    int `koanf:"search_max_results" default:"500"`
}

// New loads configuration from an optional YAML file (CONFIG_FILE, defaulting
// to /config/shelf.yaml) and then environment variables, which take
// precedence.
func New() (*Config, error) {
	k := koanf.New(".")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config backed by an in-memory database with slow or
// heavyweight features turned off.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.ServerHost = "127.0.0.1"
	cfg.StorageDir = os.TempDir()
	cfg.RenderPDFCovers = false
	cfg.WorkerProcesses = 1
	cfg.WorkerPollInterval = 10 * time.Millisecond
	return cfg
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[t.Field(i).Tag.Get("koanf")] = struct{}{}
	}
	return keys
}

func checkRequired(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if v.Field(i).IsZero() {
			key := toSnakeCase(field.Name)
			return errors.Errorf("missing required config: set %s or %s in the config file", strings.ToUpper(key), key)
		}
	}
	return nil
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
