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
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sheetquery/internal/observability"
)

// State is a step of the per-question state machine.
type State string

const (
	StateAwaitingQuestion State = "AWAITING_QUESTION"
	StateSelectingSchema  State = "SELECTING_SCHEMA"
	StateBuildingFocus    State = "BUILDING_FOCUS"
	StateSynthesizingSQL  State = "SYNTHESIZING_SQL"
	StateExecuting        State = "EXECUTING"
	StateExplaining       State = "EXPLAINING"
	StateDone             State = "DONE"
	StateError            State = "ERROR"
)

// Answer is everything produced for one question. When Err is set, State is
// StateError and the fields after the failing stage are zero.
type Answer struct {
	ID             string
	Question       string
	Selection      SchemaSelection
	Focused        FocusedSchema
	SQL            string
	Result         QueryResult
	Explanation    string
	ExplanationErr error
	Err            error
	State          State
	Trace          []State
}

// Message is the user-facing text for the answer's outcome.
func (a *Answer) Message() string {
	if a.Err == nil {
		if a.ExplanationErr != nil {
			return fmt.Sprintf("Could not summarize the result: %v", a.ExplanationErr)
		}
		return a.Explanation
	}

	var (
		introErr *IntrospectionError
		synthErr *SynthesisError
		execErr  *ExecutionError
		cancErr  *CancelledError
	)
	switch {
	case errors.As(a.Err, &cancErr):
		return "The question was cancelled."
	case errors.As(a.Err, &execErr):
		msg := "The query failed"
		if execErr.Err != nil {
			msg += ": " + execErr.Err.Error()
		}
		return msg
	case errors.As(a.Err, &synthErr):
		return fmt.Sprintf("Could not generate a SQL query: %v", synthErr)
	case errors.As(a.Err, &introErr):
		return fmt.Sprintf("Could not read the database: %v", introErr)
	default:
		return fmt.Sprintf("Error: %v", a.Err)
	}
}

// Controller sequences the pipeline stages for one question at a time.
type Controller struct {
	mu         sync.Mutex
	svc        *Service
	schema     []TableMetadata
	schemaText string
	state      State
	pinned     *SchemaSelection
	logger     *zap.SugaredLogger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPinnedSelection skips the relevance selector and uses sel for every question.
func WithPinnedSelection(sel SchemaSelection) ControllerOption {
	return func(c *Controller) { c.pinned = &sel }
}

// NewController reads the full schema once. A failure here is fatal to the session.
func NewController(ctx context.Context, svc *Service, opts ...ControllerOption) (*Controller, error) {
	schema, err := svc.ReadSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	c := &Controller{
		svc:        svc,
		schema:     schema,
		schemaText: FormatSchema(schema),
		state:      StateAwaitingQuestion,
		logger:     svc.logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Schema returns the tables read at construction.
func (c *Controller) Schema() []TableMetadata { return c.schema }

// SchemaText returns the full schema as prompt text.
func (c *Controller) SchemaText() string { return c.schemaText }

// State returns the current state. Outside Ask it is always StateAwaitingQuestion.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ask runs one question through the pipeline. Per-question failures are
// reported in the returned Answer, never as a panic or a returned error.
func (c *Controller) Ask(ctx context.Context, question string) (ans *Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ans = &Answer{ID: uuid.NewString(), Question: question}
	logger := c.logger.With("question_id", ans.ID)
	logger.Infof("Answering question %q", question)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Recovered from panic while answering: %v", r)
			ans.Err = fmt.Errorf("internal error: %v", r)
			c.enter(ans, StateError)
		}
		outcome := "ok"
		switch {
		case ans.Err != nil:
			outcome = "error"
		case ans.ExplanationErr != nil:
			outcome = "degraded"
		}
		observability.ObserveQuestion(outcome)
		c.state = StateAwaitingQuestion
	}()

	c.enter(ans, StateAwaitingQuestion)
	if err := ctx.Err(); err != nil {
		c.fail(ctx, ans, logger, &CancelledError{Msg: "question not started", Err: err})
		return ans
	}

	c.enter(ans, StateSelectingSchema)
	c.timed(StateSelectingSchema, func() {
		if c.pinned != nil {
			ans.Selection = *c.pinned
			return
		}
		ans.Selection = c.svc.SelectSchema(ctx, c.schema, question)
	})

	c.enter(ans, StateBuildingFocus)
	var err error
	c.timed(StateBuildingFocus, func() {
		ans.Focused, err = c.svc.BuildFocusedSchema(ctx, ans.Selection)
	})
	if err != nil {
		c.fail(ctx, ans, logger, err)
		return ans
	}

	c.enter(ans, StateSynthesizingSQL)
	c.timed(StateSynthesizingSQL, func() {
		ans.SQL, err = c.svc.SynthesizeSQL(ctx, c.schemaText, question, ans.Focused)
	})
	if err != nil {
		c.fail(ctx, ans, logger, err)
		return ans
	}
	logger.Debugf("Generated SQL: %s", ans.SQL)

	c.enter(ans, StateExecuting)
	c.timed(StateExecuting, func() {
		ans.Result = c.svc.ExecuteSQL(ctx, ans.SQL)
	})
	if ans.Result.Failed() {
		c.fail(ctx, ans, logger, ans.Result.Err)
		return ans
	}

	c.enter(ans, StateExplaining)
	c.timed(StateExplaining, func() {
		ans.Explanation, ans.ExplanationErr = c.svc.ExplainResult(ctx, question, ans.Result)
	})
	if ans.ExplanationErr != nil {
		logger.Warnf("Failed to explain result, showing raw rows only: %v", ans.ExplanationErr)
	}

	c.enter(ans, StateDone)
	logger.Infof("Answered with %d row(s)", len(ans.Result.Rows))
	return ans
}

func (c *Controller) enter(ans *Answer, s State) {
	c.state = s
	ans.State = s
	ans.Trace = append(ans.Trace, s)
}

// fail records err as the answer's outcome. A stage error caused by
// cancellation is wrapped in a CancelledError.
func (c *Controller) fail(ctx context.Context, ans *Answer, logger *zap.SugaredLogger, err error) {
	var cancErr *CancelledError
	if ctx.Err() != nil && !errors.As(err, &cancErr) {
		err = &CancelledError{Msg: "cancelled during " + string(ans.State), Err: err}
	}
	logger.Errorf("Question failed in %s: %v", ans.State, err)
	ans.Err = err
	c.enter(ans, StateError)
}

func (c *Controller) timed(s State, fn func()) {
	start := time.Now()
	fn()
	observability.ObserveStage(string(s), time.Since(start))
}
