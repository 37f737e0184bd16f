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
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	_ "github.com/GoogleCloudPlatform/sheetquery/internal/database/duckdb"
	_ "github.com/GoogleCloudPlatform/sheetquery/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/sheetquery/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/sheetquery/internal/database/sqlite"
	_ "github.com/GoogleCloudPlatform/sheetquery/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/sheetquery/internal/genai"
	"github.com/GoogleCloudPlatform/sheetquery/internal/logging"
)

var (
	configFile string

	// set by initFlagsAndConfig before any subcommand runs
	appConfig *config.Config
	logger    = zap.NewNop().Sugar()
)

var rootCmd = &cobra.Command{
	Use:   "sheetquery",
	Short: "Ask questions about spreadsheet data in plain language",
	Long: `sheetquery loads spreadsheets into a relational database and answers
natural-language questions about them by generating, running and explaining SQL.`,
	SilenceUsage:      true,
	PersistentPreRunE: initFlagsAndConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// initFlagsAndConfig builds the configuration from the config file, the
// environment and the flags that were set, then sets up logging.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	zl, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(zl)
	logger = zl.Sugar()
	appConfig = cfg
	return nil
}

func setupDatabase(ctx context.Context) (*database.DB, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration is not initialized")
	}
	db, err := database.New(ctx, appConfig.Database)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func setupCompletionClient(ctx context.Context) (genai.LLMClient, error) {
	c := appConfig.Completion
	client, err := genai.NewClient(ctx, genai.Config{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return client, nil
}

// ExecuteContext runs the root command. Subcommands receive ctx through cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")

	// Database connection flags
	flags.String("dialect", "", fmt.Sprintf("Database dialect (%s), default sqlite", strings.Join(config.SupportedDialects(), ", ")))
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name, or file path for sqlite and duckdb (default excel_data.db)")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Completion service flags
	flags.String("provider", "", "Completion provider (openai or gemini), default openai")
	flags.String("api-key", "", "Completion API key (can also be set via GROQ_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY)")
	flags.String("model", "", "Completion model (defaults per provider)")
	flags.String("base-url", "", "Base URL of an OpenAI-compatible API (default Groq)")
	flags.Int("sample-rows", 0, "Sample rows shown per selected table (default 3)")
	flags.Int("max-attempts", 0, "Attempts per completion call or query, including the first (default 1)")

	// Logging flags
	flags.String("log-level", "", "Log level (debug, info, warn, error), default info")
	flags.Bool("log-json", false, "Log in JSON format")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(askCmd)
}
