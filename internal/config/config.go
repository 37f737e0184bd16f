/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Completion CompletionConfig `mapstructure:"completion"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Loader     LoaderConfig     `mapstructure:"loader"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"name"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"cloudsql_use_private_ip"`
}

// CompletionConfig selects and configures the text-completion provider.
type CompletionConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CallSiteConfig tunes a single completion call site.
type CallSiteConfig struct {
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
}

// RetryConfig mirrors pipeline.RetryOptions.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

type PipelineConfig struct {
	SampleRows  int            `mapstructure:"sample_rows"`
	ExplainRows int            `mapstructure:"explain_rows"`
	Select      CallSiteConfig `mapstructure:"select"`
	Synthesize  CallSiteConfig `mapstructure:"synthesize"`
	Explain     CallSiteConfig `mapstructure:"explain"`
	Retry       RetryConfig    `mapstructure:"retry"`
}

// LoaderConfig describes where spreadsheets are read from.
type LoaderConfig struct {
	Dir             string `mapstructure:"dir"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	supportedDialects  = []string{"sqlite", "duckdb", "postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}
	supportedProviders = []string{"openai", "gemini"}
)

// SupportedDialects returns the dialect names accepted by Validate.
func SupportedDialects() []string {
	return append([]string(nil), supportedDialects...)
}

// flagKeys maps cobra flag names to configuration keys.
var flagKeys = map[string]string{
	"dialect":                           "database.dialect",
	"host":                              "database.host",
	"port":                              "database.port",
	"username":                          "database.user",
	"password":                          "database.password",
	"database":                          "database.name",
	"cloudsql-instance-connection-name": "database.cloudsql_instance_connection_name",
	"cloudsql-use-private-ip":           "database.cloudsql_use_private_ip",
	"provider":                          "completion.provider",
	"api-key":                           "completion.api_key",
	"model":                             "completion.model",
	"base-url":                          "completion.base_url",
	"sample-rows":                       "pipeline.sample_rows",
	"max-attempts":                      "pipeline.retry.max_attempts",
	"dir":                               "loader.dir",
	"bucket":                            "loader.bucket",
	"prefix":                            "loader.prefix",
	"log-level":                         "logging.level",
	"log-json":                          "logging.json",
	"metrics-addr":                      "metrics.addr",
}

// GetConfig returns a default configuration.
func GetConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "sqlite",
			Host:    "localhost",
			DBName:  "excel_data.db",
			SSLMode: "disable",
		},
		Completion: CompletionConfig{
			Provider: "openai",
			BaseURL:  "https://api.groq.com/openai/v1",
		},
		Pipeline: PipelineConfig{
			SampleRows:  3,
			ExplainRows: 10,
			Select:      CallSiteConfig{Temperature: 0, MaxTokens: 300},
			Synthesize:  CallSiteConfig{Temperature: 0.3, MaxTokens: 500},
			Explain:     CallSiteConfig{Temperature: 0.3, MaxTokens: 400},
			Retry: RetryConfig{
				MaxAttempts:       1,
				InitialBackoff:    100 * time.Millisecond,
				MaxBackoff:        2 * time.Second,
				BackoffMultiplier: 2.0,
			},
		},
		Loader: LoaderConfig{
			Dir: "school_data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional config file,
// SHEETQUERY_* environment variables and any flags that were set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, GetConfig())

	v.SetEnvPrefix("SHEETQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = apiKeyFromEnv(cfg.Completion.Provider)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.name", d.Database.DBName)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.cloudsql_instance_connection_name", d.Database.CloudSQLInstanceConnectionName)
	v.SetDefault("database.cloudsql_use_private_ip", d.Database.UsePrivateIP)

	v.SetDefault("completion.provider", d.Completion.Provider)
	v.SetDefault("completion.api_key", d.Completion.APIKey)
	v.SetDefault("completion.model", d.Completion.Model)
	v.SetDefault("completion.base_url", d.Completion.BaseURL)
	v.SetDefault("completion.timeout", d.Completion.Timeout)

	v.SetDefault("pipeline.sample_rows", d.Pipeline.SampleRows)
	v.SetDefault("pipeline.explain_rows", d.Pipeline.ExplainRows)
	v.SetDefault("pipeline.select.temperature", d.Pipeline.Select.Temperature)
	v.SetDefault("pipeline.select.max_tokens", d.Pipeline.Select.MaxTokens)
	v.SetDefault("pipeline.synthesize.temperature", d.Pipeline.Synthesize.Temperature)
	v.SetDefault("pipeline.synthesize.max_tokens", d.Pipeline.Synthesize.MaxTokens)
	v.SetDefault("pipeline.explain.temperature", d.Pipeline.Explain.Temperature)
	v.SetDefault("pipeline.explain.max_tokens", d.Pipeline.Explain.MaxTokens)
	v.SetDefault("pipeline.retry.max_attempts", d.Pipeline.Retry.MaxAttempts)
	v.SetDefault("pipeline.retry.initial_backoff", d.Pipeline.Retry.InitialBackoff)
	v.SetDefault("pipeline.retry.max_backoff", d.Pipeline.Retry.MaxBackoff)
	v.SetDefault("pipeline.retry.backoff_multiplier", d.Pipeline.Retry.BackoffMultiplier)

	v.SetDefault("loader.dir", d.Loader.Dir)
	v.SetDefault("loader.bucket", d.Loader.Bucket)
	v.SetDefault("loader.prefix", d.Loader.Prefix)
	v.SetDefault("loader.endpoint", d.Loader.Endpoint)
	v.SetDefault("loader.access_key", d.Loader.AccessKeyID)
	v.SetDefault("loader.secret_key", d.Loader.SecretAccessKey)
	v.SetDefault("loader.use_ssl", d.Loader.UseSSL)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// apiKeyFromEnv falls back to the provider's conventional environment variable.
func apiKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	default:
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks the settings that every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if !contains(supportedDialects, c.Database.Dialect) {
		errs = append(errs, fmt.Errorf("unsupported dialect: %s (only %s are supported)", c.Database.Dialect, strings.Join(supportedDialects, ", ")))
	}
	if !contains(supportedProviders, strings.ToLower(c.Completion.Provider)) {
		errs = append(errs, fmt.Errorf("unsupported completion provider: %s (only %s are supported)", c.Completion.Provider, strings.Join(supportedProviders, ", ")))
	}
	if c.Pipeline.SampleRows < 0 {
		errs = append(errs, fmt.Errorf("pipeline.sample_rows must not be negative"))
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("pipeline.retry.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
