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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/sheetquery/internal/pipeline"
	"github.com/GoogleCloudPlatform/sheetquery/internal/utils"
)

var schemaCmd = &cobra.Command{
	Use:     "schema",
	Short:   "Print the database schema",
	Long:    `Reads every table and its columns from the database and prints them in the format sent to the completion service.`,
	Example: `./sheetquery schema --database excel_data.db --out_file ./schema.txt`,
	RunE:    runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := pipeline.NewService(db, nil, pipeline.OptionsFromConfig(appConfig.Pipeline), logger)
	schema, err := svc.ReadSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	output := pipeline.FormatSchema(schema)

	outputFile, _ := cmd.Flags().GetString("out_file")
	save, _ := cmd.Flags().GetBool("save")
	if outputFile == "" && !save {
		fmt.Fprint(cmd.OutOrStdout(), output)
		return nil
	}
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(appConfig.Database.DBName, "schema")
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema written to: %s\n", outputFile)
	return nil
}

func init() {
	schemaCmd.Flags().StringP("out_file", "o", "", "File path to save the schema to (optional)")
	schemaCmd.Flags().Bool("save", false, "Save the schema to <database>_schema.txt")
}
