// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "TASKMANAGER"

const (
	RepositoryPostgres = "postgres"
	RepositorySQLite   = "sqlite"
	RepositoryInMemory = "inmemory"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" yaml:"port"`
	Host            string        `mapstructure:"host" yaml:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimitRPM    int           `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections"`
	MinConnections int           `mapstructure:"min_connections" yaml:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MigrateOnStart bool          `mapstructure:"migrate_on_start" yaml:"migrate_on_start"`
}

type LoggingConfig struct {
	Development bool       `mapstructure:"development" yaml:"development"`
	Level       string     `mapstructure:"level" yaml:"level"`
	File        FileConfig `mapstructure:"file" yaml:"file"`
}

// ротация логов в файл, пустой path - только stdout
type FileConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type RepositoryConfig struct {
	Type       string `mapstructure:"type" yaml:"type"` // "postgres", "sqlite" или "inmemory"
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

const (
	TracingExporterNone   = "none"
	TracingExporterStdout = "stdout"
)

// контекст трассировки из входящих заголовков принимается всегда, exporter решает куда уходят спаны
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter    string  `mapstructure:"exporter" yaml:"exporter"` // "none" или "stdout"
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit_rpm", 100)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("repository.type", RepositoryInMemory)
	v.SetDefault("repository.sqlite_path", "taskmanager.db")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.exporter", TracingExporterNone)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load читает yaml-файл (если он есть) и переменные окружения TASKMANAGER_*
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("конфигурация: database.url обязателен для repository.type=postgres")
		}
	case RepositorySQLite:
		if c.Repository.SQLitePath == "" {
			return errors.New("конфигурация: repository.sqlite_path обязателен для repository.type=sqlite")
		}
	case RepositoryInMemory:
	default:
		return fmt.Errorf("конфигурация: неизвестный repository.type %q", c.Repository.Type)
	}

	if c.Server.Port == "" {
		return errors.New("конфигурация: server.port обязателен")
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case TracingExporterNone, TracingExporterStdout:
		default:
			return fmt.Errorf("конфигурация: неизвестный tracing.exporter %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("конфигурация: tracing.sample_ratio должен быть в [0, 1], получено %v", c.Tracing.SampleRatio)
		}
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Redacted возвращает итоговую конфигурацию в yaml со скрытым паролем БД
func (c *Config) Redacted() string {
	cp := *c
	cp.Database.URL = redactURL(c.Database.URL)

	out, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Sprintf("<ошибка сериализации конфигурации: %v>", err)
	}
	return string(out)
}

// password=... в DSN вида "host=db user=app password=secret" и в query строке URL
var dsnPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('(?:[^'\\]|\\.)*'|[^\s&]+)`)

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			raw = u.String()
		}
	}
	return dsnPassword.ReplaceAllString(raw, "${1}xxxxx")
}
