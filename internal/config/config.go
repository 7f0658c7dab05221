package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"coophours/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Exports    ExportConfig     `yaml:"exports"`
	Backup     BackupConfig     `yaml:"backup"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SessionConfig struct {
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
}

// IdleTimeout returns the configured timeout as a duration.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; it only feeds os.ExpandEnv below.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Session.IdleTimeoutSeconds <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "coophours"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Session.IdleTimeoutSeconds == 0 {
		c.Session.IdleTimeoutSeconds = models.SessionIdleTimeoutSeconds
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = models.RateLimitRPS
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = models.RateLimitBurst
	}
}

// ValidateEquipment checks a catalog loaded from the equipment file.
func ValidateEquipment(equipment []models.Equipment) error {
	ids := make(map[int64]bool)
	for _, eq := range equipment {
		if eq.ID == 0 {
			return fmt.Errorf("equipment '%s' has invalid ID 0", eq.Name)
		}
		if ids[eq.ID] {
			return fmt.Errorf("duplicate equipment ID found: %d", eq.ID)
		}
		if eq.ManagerUsername == "" {
			return fmt.Errorf("equipment '%s' has no manager", eq.Name)
		}
		ids[eq.ID] = true
	}
	return nil
}
