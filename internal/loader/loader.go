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
package loader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	"github.com/GoogleCloudPlatform/sheetquery/internal/logging"
	"github.com/GoogleCloudPlatform/sheetquery/internal/observability"
)

// Store is the part of the database the loader writes to.
type Store interface {
	LookupTable(ctx context.Context, tableName string) (string, bool, error)
	ReplaceTable(ctx context.Context, tableName string, columns []database.ColumnDef, rows []database.Row) error
}

// LoadReport summarizes one load run.
type LoadReport struct {
	Loaded  int
	Failed  int
	Skipped int
	// Tables lists the tables written, in load order.
	Tables []string
}

// SanitizeTableName derives a table name from a file name by dropping the
// extension and replacing spaces and hyphens with underscores.
func SanitizeTableName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name := strings.TrimSuffix(base, path.Ext(base))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// Loader copies spreadsheet files into tables, one table per file.
type Loader struct {
	store   Store
	logger  *zap.SugaredLogger
	confirm func(table string) bool
}

type Option func(*Loader)

// WithConfirm asks before replacing a table that already exists. Declined
// files are counted as skipped.
func WithConfirm(confirm func(table string) bool) Option {
	return func(l *Loader) { l.confirm = confirm }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(l *Loader) { l.logger = logger }
}

func New(store Store, opts ...Option) *Loader {
	l := &Loader{store: store}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrNop(l.logger)
	return l
}

// Load replaces one table per supported file in src. A file that fails to
// load is logged and counted; the run continues with the next file. Only a
// failure to list src is returned as an error.
func (l *Loader) Load(ctx context.Context, src Source) (LoadReport, error) {
	var report LoadReport
	names, err := src.List(ctx)
	if err != nil {
		return report, err
	}
	if len(names) == 0 {
		l.logger.Warnf("No spreadsheet files found in %s", src)
		return report, nil
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		table := SanitizeTableName(name)
		if table == "" {
			l.logger.Errorf("Failed to load '%s': empty table name", name)
			report.Failed++
			observability.ObserveFile(observability.FileFailed)
			continue
		}

		if l.confirm != nil {
			_, exists, err := l.store.LookupTable(ctx, table)
			if err != nil {
				l.logger.Errorf("Failed to check table %s: %v", table, err)
				report.Failed++
				observability.ObserveFile(observability.FileFailed)
				continue
			}
			if exists && !l.confirm(table) {
				l.logger.Infof("Skipping '%s': table '%s' kept", name, table)
				report.Skipped++
				observability.ObserveFile(observability.FileSkipped)
				continue
			}
		}

		rows, err := l.loadFile(ctx, src, name, table)
		if err != nil {
			l.logger.Errorf("Failed to load '%s': %v", name, err)
			report.Failed++
			observability.ObserveFile(observability.FileFailed)
			continue
		}
		l.logger.Infof("Loaded '%s' as table '%s' (%d rows)", name, table, rows)
		report.Loaded++
		report.Tables = append(report.Tables, table)
		observability.ObserveFile(observability.FileLoaded)
	}
	return report, nil
}

func (l *Loader) loadFile(ctx context.Context, src Source, name, table string) (int, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to open: %w", err)
	}
	defer rc.Close()

	g, err := readGrid(name, rc)
	if err != nil {
		return 0, err
	}
	cols, rows := buildTable(g)
	if len(cols) == 0 {
		return 0, errors.New("no columns")
	}
	if err := l.store.ReplaceTable(ctx, table, cols, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// LoadDir loads every supported file in dir.
func LoadDir(ctx context.Context, store Store, dir string, opts ...Option) (LoadReport, error) {
	return New(store, opts...).Load(ctx, DirSource{Dir: dir})
}
