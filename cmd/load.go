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
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/sheetquery/internal/loader"
	"github.com/GoogleCloudPlatform/sheetquery/internal/utils"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load spreadsheets into the database",
	Long: `Reads every .xlsx, .csv and .parquet file from a directory or an S3-compatible
bucket and replaces one table per file. Table names come from the file names with
spaces and hyphens turned into underscores.`,
	Example: `./sheetquery load --dir ./school_data --database excel_data.db`,
	RunE:    runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	src, err := loader.NewSource(appConfig.Loader)
	if err != nil {
		return err
	}

	logger.Infow("Starting load operation",
		"dialect", appConfig.Database.Dialect,
		"database", appConfig.Database.DBName,
		"source", src.String(),
	)

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []loader.Option{loader.WithLogger(logger)}
	if confirm, _ := cmd.Flags().GetBool("confirm"); confirm {
		in, out := bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout()
		opts = append(opts, loader.WithConfirm(func(table string) bool {
			return utils.ConfirmAction(in, out, fmt.Sprintf("Table %s already exists and will be replaced.", table))
		}))
	}

	report, err := loader.New(db, opts...).Load(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to load spreadsheets: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d file(s) from %s (%d failed, %d skipped)\n", report.Loaded, src, report.Failed, report.Skipped)

	if postSQL, _ := cmd.Flags().GetString("post-sql"); postSQL != "" {
		stmts, err := utils.ReadSQLStatementsFromFile(postSQL)
		if err != nil {
			return err
		}
		if err := db.ExecuteSQLStatements(ctx, stmts); err != nil {
			return fmt.Errorf("failed to run %s: %w", postSQL, err)
		}
		logger.Infof("Ran %d statement(s) from %s", len(stmts), postSQL)
	}

	logger.Info("Load operation completed")
	return nil
}

func init() {
	loadCmd.Flags().String("dir", "", "Directory to read spreadsheets from (default school_data)")
	loadCmd.Flags().String("bucket", "", "S3-compatible bucket to read spreadsheets from instead of a directory")
	loadCmd.Flags().String("prefix", "", "Object prefix inside the bucket")
	loadCmd.Flags().Bool("confirm", false, "Ask before replacing tables that already exist")
	loadCmd.Flags().String("post-sql", "", "SQL script to run after loading, e.g. to create views")
}
