package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todoList/internal/codec"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yml"

const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Remote  RemoteConfig  `yaml:"remote" mapstructure:"remote"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
}

type ServerConfig struct {
	Port string `yaml:"port" mapstructure:"port"`
	Host string `yaml:"host" mapstructure:"host"`
}

type LoggingConfig struct {
	Development bool   `yaml:"development" mapstructure:"development"`
	File        string `yaml:"file" mapstructure:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "file", "sqlite" или "postgres"
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Name        string `yaml:"name" mapstructure:"name"`
	Format      string `yaml:"format" mapstructure:"format"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url" mapstructure:"postgres_url"`
}

type RemoteConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	Token          string        `yaml:"token" mapstructure:"token"`
	DeviceID       string        `yaml:"device_id" mapstructure:"device_id"`
	ListTimeout    time.Duration `yaml:"list_timeout" mapstructure:"list_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

type SyncConfig struct {
	Interval           time.Duration `yaml:"interval" mapstructure:"interval"`
	MergeServerRecords bool          `yaml:"merge_server_records" mapstructure:"merge_server_records"`
	BackoffMax         time.Duration `yaml:"backoff_max" mapstructure:"backoff_max"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "localhost", Port: "8080"},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Storage: StorageConfig{
			Type:       StorageFile,
			Dir:        defaultDir(),
			Name:       "tasks",
			Format:     string(codec.FormatJSON),
			SQLitePath: filepath.Join(defaultDir(), "todo.db"),
		},
		Remote: RemoteConfig{
			ListTimeout:    60 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			Interval:           30 * time.Second,
			MergeServerRecords: true,
			BackoffMax:         10 * time.Minute,
		},
	}
}

func defaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".todo"
	}
	return filepath.Join(dir, "todo")
}

// Load читает YAML-файл и переменные окружения TODO_*, например TODO_REMOTE_TOKEN.
// Отсутствующий файл не является ошибкой: используются значения по умолчанию.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
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

// setDefaults регистрирует каждый ключ, иначе viper не подставит переменные окружения
// для ключей, которых нет в файле.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.name", d.Storage.Name)
	v.SetDefault("storage.format", d.Storage.Format)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_url", d.Storage.PostgresURL)

	v.SetDefault("remote.enabled", d.Remote.Enabled)
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.token", d.Remote.Token)
	v.SetDefault("remote.device_id", d.Remote.DeviceID)
	v.SetDefault("remote.list_timeout", d.Remote.ListTimeout)
	v.SetDefault("remote.request_timeout", d.Remote.RequestTimeout)

	v.SetDefault("sync.interval", d.Sync.Interval)
	v.SetDefault("sync.merge_server_records", d.Sync.MergeServerRecords)
	v.SetDefault("sync.backoff_max", d.Sync.BackoffMax)
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir: не задан каталог")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path: не задан путь к базе")
		}
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url: не задана строка подключения")
		}
	default:
		return fmt.Errorf("storage.type: неизвестный тип хранилища %q", c.Storage.Type)
	}

	if c.Storage.Name == "" {
		return fmt.Errorf("storage.name: не задано имя списка")
	}
	if _, err := codec.ParseFormat(c.Storage.Format); err != nil {
		return fmt.Errorf("storage.format: %w", err)
	}

	if c.Remote.Enabled {
		u, err := url.Parse(c.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote.base_url: некорректный адрес %q", c.Remote.BaseURL)
		}
		if c.Remote.Token == "" {
			return fmt.Errorf("remote.token: не задан токен")
		}
	}
	return nil
}

func (c *Config) StorageFormat() codec.Format {
	format, err := codec.ParseFormat(c.Storage.Format)
	if err != nil {
		return codec.FormatJSON
	}
	return format
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Write сохраняет конфигурацию в YAML. Существующий файл перезаписывается только при force.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("файл %s уже существует", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("кодирование конфигурации: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("создание каталога %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("запись %s: %w", path, err)
	}
	return nil
}
