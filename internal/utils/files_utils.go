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
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadSQLStatementsFromFile splits a script into statements on ";" at the end of a line.
func ReadSQLStatementsFromFile(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	sqlStatements := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), ";\n")
	var trimmedStatements []string
	for _, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSuffix(strings.TrimSpace(stmt), ";")
		if trimmedStmt != "" {
			trimmedStatements = append(trimmedStatements, trimmedStmt)
		}
	}
	return trimmedStatements, nil
}

// GetDefaultOutputFilePath names the output file of a command after the
// database, without the database file's extension.
func GetDefaultOutputFilePath(dbName, commandName string) string {
	base := filepath.Base(dbName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == ":memory:" {
		base = "sheetquery"
	}
	switch commandName {
	case "schema":
		return fmt.Sprintf("%s_schema.txt", base)
	default: // ask
		return fmt.Sprintf("%s_transcript.txt", base)
	}
}

// ConfirmAction asks a yes/no question on out and reads the reply from in.
func ConfirmAction(in io.Reader, out io.Writer, actionDescription string) bool {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "\n-------------------------------------------------------------\n")
	fmt.Fprintf(out, "%s\n", actionDescription)
	fmt.Fprint(out, "Do you want to continue? (yes/no): ")
	text, _ := reader.ReadString('\n')
	action := strings.TrimSpace(strings.ToLower(text))
	return action == "yes" || action == "y"
}

// ParseTablesFlag parses "t1[c1,c2],t2" into a table to columns map. A
// table without brackets maps to nil, meaning all columns.
func ParseTablesFlag(tablesFlag string) (map[string][]string, error) {
	tableColumns := make(map[string][]string)
	if tablesFlag == "" {
		return tableColumns, nil
	}

	// strip any whitespace
	tablesFlag = strings.ReplaceAll(tablesFlag, " ", "")

	// Split by comma, but only if the comma is not within square brackets
	parts := SplitOutsideBrackets(tablesFlag)

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			tableColumns[part] = nil
			continue
		}
		bracketEnd := strings.Index(part, "]")
		if bracketEnd == -1 {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}

		tableName := strings.TrimSpace(part[:bracketStart])
		if tableName == "" {
			return nil, fmt.Errorf("missing table name in: %s", part)
		}
		var columns []string
		for _, col := range strings.Split(part[bracketStart+1:bracketEnd], ",") {
			if col = strings.TrimSpace(col); col != "" {
				columns = append(columns, col)
			}
		}
		tableColumns[tableName] = columns
	}

	return tableColumns, nil
}

// SplitOutsideBrackets splits s on commas that are not within square brackets.
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	// Add the last part
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
