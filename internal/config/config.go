package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tulibraries/combine/pkg/models"
)

// Config holds all configuration for the Combine server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Livy     LivyConfig
	Storage  StorageConfig
	Search   SearchConfig
	Analysis AnalysisConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// LivyConfig locates the remote compute session service and carries the
// process-wide default session config submitted on session creation.
type LivyConfig struct {
	Host    string
	Port    int
	Timeout time.Duration

	SessionKind  string
	SessionJars  []string
	SessionFiles []string
	SparkUIPort  int
}

// BaseURL returns the root URL of the Livy server.
func (c LivyConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// StorageConfig roots all job output. Root is a URI prefix (file:// or a
// distributed-storage scheme) under which output locations, transformations/,
// and stateio/{exports,imports} live.
type StorageConfig struct {
	Root string
}

// TransformationsDir returns the on-disk directory transformation artifacts
// are written to for the remote session to read.
func (c StorageConfig) TransformationsDir() string {
	return localPath(c.Root) + "/transformations"
}

// PublishedDir returns the on-disk directory holding published symlinks.
func (c StorageConfig) PublishedDir() string {
	return localPath(c.Root) + "/published"
}

func localPath(root string) string {
	return strings.TrimRight(strings.TrimPrefix(root, "file://"), "/")
}

type SearchConfig struct {
	URL     string
	Timeout time.Duration
}

// AnalysisConfig names the reserved organization and record group that
// Analysis jobs attach to. Defaults are deliberately unique so they never
// collide with user-created hierarchy.
type AnalysisConfig struct {
	OrganizationName string
	RecordGroupName  string
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("COMBINE_PORT", 8080),
			Env:  envString("COMBINE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Livy: LivyConfig{
			Host:         envString("LIVY_HOST", "127.0.0.1"),
			Port:         envInt("LIVY_PORT", 8998),
			Timeout:      envDuration("LIVY_TIMEOUT", 30*time.Second),
			SessionKind:  envString("LIVY_SESSION_KIND", "pyspark"),
			SessionJars:  envList("LIVY_SESSION_JARS", []string{"file:///combinelib/mysql.jar"}),
			SessionFiles: envList("LIVY_SESSION_FILES", nil),
			SparkUIPort:  envInt("SPARK_UI_PORT", 4040),
		},
		Storage: StorageConfig{
			Root: envString("BINARY_STORAGE", "file:///home/combine/data/combine"),
		},
		Search: SearchConfig{
			URL:     envString("ES_URL", "http://127.0.0.1:9200"),
			Timeout: envDuration("ES_TIMEOUT", 30*time.Second),
		},
		Analysis: AnalysisConfig{
			OrganizationName: envString("ANALYSIS_ORGANIZATION", models.AnalysisOrganizationName),
			RecordGroupName:  envString("ANALYSIS_RECORD_GROUP", models.AnalysisRecordGroupName),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Livy.Host == "" {
		return fmt.Errorf("LIVY_HOST must not be empty")
	}
	if c.Livy.Port <= 0 || c.Livy.Port > 65535 {
		return fmt.Errorf("LIVY_PORT must be a valid port, got %d", c.Livy.Port)
	}

	if !strings.Contains(c.Storage.Root, "://") {
		return fmt.Errorf("BINARY_STORAGE must carry a scheme (file:// or hdfs://), got %q", c.Storage.Root)
	}

	if !strings.HasPrefix(c.Search.URL, "http://") && !strings.HasPrefix(c.Search.URL, "https://") {
		return fmt.Errorf("ES_URL must start with http:// or https://, got %q", c.Search.URL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
