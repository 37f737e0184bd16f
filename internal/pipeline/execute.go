package pipeline

import (
	"context"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	"github.com/GoogleCloudPlatform/sheetquery/internal/observability"
)

// QueryResult is either a result set or an execution failure. Callers must
// use Failed, not the row count, to tell the two apart.
type QueryResult struct {
	database.ResultSet
	Err *ExecutionError
}

func (r QueryResult) Failed() bool { return r.Err != nil }

// ExecuteSQL runs stmt against the store in read-only mode. Errors, including
// rejected writes, are returned inside the result.
func (s *Service) ExecuteSQL(ctx context.Context, stmt string) QueryResult {
	rs, err := withRetry(ctx, s.opts.Retry, s.logger, func(ctx context.Context) (database.ResultSet, error) {
		return s.db.QueryReadOnly(ctx, stmt)
	})
	if err != nil {
		s.logger.Infof("Query failed: %v", err)
		return QueryResult{Err: &ExecutionError{Msg: "failed to execute query", Err: err}}
	}
	observability.ObserveRows(len(rs.Rows))
	return QueryResult{ResultSet: rs}
}
