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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/sheetquery/internal/observability"
	"github.com/GoogleCloudPlatform/sheetquery/internal/pipeline"
	"github.com/GoogleCloudPlatform/sheetquery/internal/session"
	"github.com/GoogleCloudPlatform/sheetquery/internal/utils"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer questions about the loaded data",
	Long: `Starts an interactive session that turns each question into SQL, runs it and
explains the result. With --question, answers the given questions and exits.`,
	Example: `./sheetquery ask --database excel_data.db --tables "students[name,grade],teachers"`,
	RunE:    runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tablesFlag, _ := cmd.Flags().GetString("tables")
	pinned, err := utils.ParseTablesFlag(tablesFlag)
	if err != nil {
		return fmt.Errorf("invalid --tables value: %w", err)
	}

	logger.Infow("Starting ask operation",
		"dialect", appConfig.Database.Dialect,
		"database", appConfig.Database.DBName,
		"provider", appConfig.Completion.Provider,
	)

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	llm, err := setupCompletionClient(ctx)
	if err != nil {
		return err
	}
	defer llm.Close()

	if skip, _ := cmd.Flags().GetBool("skip-key-check"); !skip {
		logger.Info("Validating completion API key...")
		if err := llm.IsAPIKeyValid(ctx); err != nil {
			return fmt.Errorf("completion API key validation failed: %w", err)
		}
	}

	if addr := appConfig.Metrics.Addr; addr != "" {
		go func() {
			if err := observability.Serve(ctx, addr, logger); err != nil {
				logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	svc := pipeline.NewService(db, llm, pipeline.OptionsFromConfig(appConfig.Pipeline), logger)
	var ctrlOpts []pipeline.ControllerOption
	if len(pinned) > 0 {
		ctrlOpts = append(ctrlOpts, pipeline.WithPinnedSelection(pipeline.PinnedSelection(pinned)))
	}
	ctrl, err := pipeline.NewController(ctx, svc, ctrlOpts...)
	if err != nil {
		return err
	}

	opts := session.Options{}
	opts.HideSchema, _ = cmd.Flags().GetBool("hide-schema")
	opts.HideFocus, _ = cmd.Flags().GetBool("hide-focus")

	transcript, err := openTranscript(cmd)
	if err != nil {
		return err
	}
	if transcript != nil {
		defer transcript.Close()
		opts.Transcript = transcript
	}

	out := cmd.OutOrStdout()
	questions, _ := cmd.Flags().GetStringArray("question")
	if len(questions) > 0 {
		return answerAll(ctx, out, ctrl, questions, opts)
	}

	n, err := session.Run(ctx, cmd.InOrStdin(), out, ctrl, opts)
	logger.Infof("Session ended after %d question(s)", n)
	return err
}

// answerAll answers each question once without prompting.
func answerAll(ctx context.Context, out io.Writer, asker session.Asker, questions []string, opts session.Options) error {
	for _, q := range questions {
		ans := asker.Ask(ctx, q)
		fmt.Fprintf(out, "\nQuestion: %s\n", q)
		session.PrintAnswer(out, ans, !opts.HideFocus)
		if opts.Transcript != nil {
			fmt.Fprintf(opts.Transcript, "Question: %s\n", q)
			session.PrintAnswer(opts.Transcript, ans, false)
			fmt.Fprintln(opts.Transcript)
		}
	}
	return nil
}

func openTranscript(cmd *cobra.Command) (*os.File, error) {
	path, _ := cmd.Flags().GetString("out_file")
	save, _ := cmd.Flags().GetBool("save")
	if path == "" && !save {
		return nil, nil
	}
	if path == "" {
		path = utils.GetDefaultOutputFilePath(appConfig.Database.DBName, "ask")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	logger.Infof("Appending answers to %s", path)
	return f, nil
}

func init() {
	askCmd.Flags().String("tables", "", "Tables and columns to use instead of automatic selection, e.g. \"students[name,grade],teachers\"")
	askCmd.Flags().StringArrayP("question", "q", nil, "Question to answer without starting a session (repeatable)")
	askCmd.Flags().StringP("out_file", "o", "", "File to append answers to (optional)")
	askCmd.Flags().Bool("save", false, "Append answers to <database>_transcript.txt")
	askCmd.Flags().Bool("hide-schema", false, "Do not print the full schema at start")
	askCmd.Flags().Bool("hide-focus", false, "Do not print the focused schema for each question")
	askCmd.Flags().Bool("skip-key-check", false, "Do not validate the API key before starting")
	askCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
