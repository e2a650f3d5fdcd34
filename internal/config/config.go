package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7340"
	DefaultDBFileName  = "data.db"
	DefaultBlobDirName = "files"
	DefaultLogLevel    = "info"

	DefaultLedgerDriver      = "sqlite"
	DefaultBlobDriver        = "fs"
	DefaultIngestMaxFailures = 100
	DefaultIngestParallelism = 1

	configFileName           = ".chronicle.toml"
	configDirEnvKey          = "CHRONICLE_CONFIG_DIR"
	trustProjectConfigEnvKey = "CHRONICLE_TRUST_PROJECT_CONFIG"

	apiURLEnvKey      = "CHRONICLE_API_URL"
	dbPathEnvKey      = "CHRONICLE_DB"
	blobDirEnvKey     = "CHRONICLE_BLOB_DIR"
	ledgerDSNEnvKey   = "CHRONICLE_LEDGER_DSN"
	sourcesFileEnvKey = "CHRONICLE_SOURCES"
	pushgatewayEnvKey = "CHRONICLE_PUSHGATEWAY_URL"

	DefaultMetricsJob = "chronicle"
)

// LedgerConfig selects the ledger database.
type LedgerConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// BlobConfig selects the blob storage backend.
type BlobConfig struct {
	Driver      string `toml:"driver"`
	Dir         string `toml:"dir"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Prefix    string `toml:"s3_prefix"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

// IngestConfig tunes ingestion runs.
type IngestConfig struct {
	MaxFailures int    `toml:"max_failures"`
	Parallelism int    `toml:"parallelism"`
	SourcesFile string `toml:"sources_file"`
}

// MetricsConfig selects where ingestion runs export their counters.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Textfile       string `toml:"textfile"`
	Job            string `toml:"job"`
}

// Config defines runtime configuration for chronicle.
type Config struct {
	APIURL                   string        `toml:"api_url"`
	DBPath                   string        `toml:"db_path"`
	LogLevel                 string        `toml:"log_level"`
	AdminTokenHash           string        `toml:"admin_token_hash"`
	Ledger                   LedgerConfig  `toml:"ledger"`
	Blobs                    BlobConfig    `toml:"blobs"`
	Ingest                   IngestConfig  `toml:"ingest"`
	Metrics                  MetricsConfig `toml:"metrics"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Ledger: LedgerConfig{
			Driver: DefaultLedgerDriver,
		},
		Blobs: BlobConfig{
			Driver: DefaultBlobDriver,
		},
		Ingest: IngestConfig{
			MaxFailures: DefaultIngestMaxFailures,
			Parallelism: DefaultIngestParallelism,
		},
		Metrics: MetricsConfig{
			Job: DefaultMetricsJob,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"admin_token_hash",
	"ledger.driver",
	"ledger.dsn",
	"blobs.driver",
	"blobs.dir",
	"blobs.s3_bucket",
	"blobs.s3_region",
	"blobs.s3_endpoint",
	"blobs.s3_prefix",
	"blobs.s3_path_style",
	"ingest.max_failures",
	"ingest.parallelism",
	"ingest.sources_file",
	"metrics.pushgateway_url",
	"metrics.textfile",
	"metrics.job",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "admin_token_hash":
		return c.AdminTokenHash, nil
	case "ledger.driver":
		return c.Ledger.Driver, nil
	case "ledger.dsn":
		return c.Ledger.DSN, nil
	case "blobs.driver":
		return c.Blobs.Driver, nil
	case "blobs.dir":
		return c.Blobs.Dir, nil
	case "blobs.s3_bucket":
		return c.Blobs.S3Bucket, nil
	case "blobs.s3_region":
		return c.Blobs.S3Region, nil
	case "blobs.s3_endpoint":
		return c.Blobs.S3Endpoint, nil
	case "blobs.s3_prefix":
		return c.Blobs.S3Prefix, nil
	case "blobs.s3_path_style":
		return strconv.FormatBool(c.Blobs.S3PathStyle), nil
	case "ingest.max_failures":
		return strconv.Itoa(c.Ingest.MaxFailures), nil
	case "ingest.parallelism":
		return strconv.Itoa(c.Ingest.Parallelism), nil
	case "ingest.sources_file":
		return c.Ingest.SourcesFile, nil
	case "metrics.pushgateway_url":
		return c.Metrics.PushgatewayURL, nil
	case "metrics.textfile":
		return c.Metrics.Textfile, nil
	case "metrics.job":
		return c.Metrics.Job, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if blobDir := os.Getenv(blobDirEnvKey); blobDir != "" {
		cfg.Blobs.Dir = blobDir
	}
	if dsn := os.Getenv(ledgerDSNEnvKey); dsn != "" {
		cfg.Ledger.DSN = dsn
	}
	if sources := os.Getenv(sourcesFileEnvKey); sources != "" {
		cfg.Ingest.SourcesFile = sources
	}
	if gateway := os.Getenv(pushgatewayEnvKey); gateway != "" {
		cfg.Metrics.PushgatewayURL = gateway
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "ingest.max_failures", "ingest.parallelism":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "metrics.pushgateway_url":
		u, err := url.Parse(value)
		if value != "" && (err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "") {
			return nil, fmt.Errorf("%s must be an http(s) url", key)
		}
		return value, nil
	case "blobs.s3_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "ledger.driver":
		switch strings.ToLower(value) {
		case "sqlite", "postgres":
			return strings.ToLower(value), nil
		}
		return nil, fmt.Errorf("%s must be sqlite or postgres", key)
	case "blobs.driver":
		switch strings.ToLower(value) {
		case "fs", "s3":
			return strings.ToLower(value), nil
		}
		return nil, fmt.Errorf("%s must be fs or s3", key)
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

// BlobDir returns the filesystem blob root: the configured dir, or a "files"
// directory next to the database.
func (c *Config) BlobDir() string {
	if strings.TrimSpace(c.Blobs.Dir) != "" {
		return c.Blobs.Dir
	}
	return filepath.Join(filepath.Dir(c.DBPath), DefaultBlobDirName)
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.Ledger.Driver) == "" {
		c.Ledger.Driver = DefaultLedgerDriver
	}
	if strings.TrimSpace(c.Blobs.Driver) == "" {
		c.Blobs.Driver = DefaultBlobDriver
	}
	if c.Ingest.MaxFailures <= 0 {
		c.Ingest.MaxFailures = DefaultIngestMaxFailures
	}
	if c.Ingest.Parallelism <= 0 {
		c.Ingest.Parallelism = DefaultIngestParallelism
	}
	if strings.TrimSpace(c.Metrics.Job) == "" {
		c.Metrics.Job = DefaultMetricsJob
	}
}
