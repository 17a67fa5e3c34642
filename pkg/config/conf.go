package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/churnscope/churnctl/pkg/store"
)

const (
	configFileName = "config.yaml"
	modelDirName   = "models"

	dirMode  = 0700
	fileMode = 0600
)

// Config is the app configuration persisted under the home directory.
type Config struct {
	// ModelPath is where the trained model artifact lives.
	ModelPath string `yaml:"model_path"`

	// Postgres, when enabled, replaces the local SQLite store as the
	// customer/prediction database.
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	SSLMode  string `yaml:"sslmode"`
}

// Conn converts the config into store connection settings. The password
// is supplied separately (keychain or env), never from the config file.
func (p PostgresConfig) Conn(password string) store.PostgresConn {
	return store.PostgresConn{
		Host:     p.Host,
		Port:     p.Port,
		Database: p.Database,
		User:     p.User,
		Password: password,
		SSLMode:  p.SSLMode,
	}
}

func defaultConfig(dir string) *Config {
	return &Config{
		ModelPath: filepath.Join(dir, modelDirName, "churn_model.json"),
		Postgres: PostgresConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			Database: "churn",
			User:     "postgres",
			SSLMode:  "disable",
		},
	}
}

// Save writes the config to its directory.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads the app config from the directory, creating a
// default one on first run.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("creating config dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, defaultConfig(dirPath)); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &c, nil
}
