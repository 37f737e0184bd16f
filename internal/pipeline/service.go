package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	"github.com/GoogleCloudPlatform/sheetquery/internal/genai"
	"github.com/GoogleCloudPlatform/sheetquery/internal/logging"
	"github.com/GoogleCloudPlatform/sheetquery/internal/observability"
)

// Completion call sites.
const (
	CallSiteSelect     = "select"
	CallSiteSynthesize = "synthesize"
	CallSiteExplain    = "explain"
)

// CallSite tunes one completion call site.
type CallSite struct {
	Temperature float32
	MaxTokens   int32
}

// Options configures a Service.
type Options struct {
	SampleRows  int
	ExplainRows int
	Select      CallSite
	Synthesize  CallSite
	Explain     CallSite
	Retry       RetryOptions
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		SampleRows:  3,
		ExplainRows: 10,
		Select:      CallSite{Temperature: 0, MaxTokens: 300},
		Synthesize:  CallSite{Temperature: 0.3, MaxTokens: 500},
		Explain:     CallSite{Temperature: 0.3, MaxTokens: 400},
		Retry:       DefaultRetryOptions,
	}
}

// OptionsFromConfig maps the pipeline section of the configuration.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		SampleRows:  cfg.SampleRows,
		ExplainRows: cfg.ExplainRows,
		Select:      CallSite{Temperature: cfg.Select.Temperature, MaxTokens: cfg.Select.MaxTokens},
		Synthesize:  CallSite{Temperature: cfg.Synthesize.Temperature, MaxTokens: cfg.Synthesize.MaxTokens},
		Explain:     CallSite{Temperature: cfg.Explain.Temperature, MaxTokens: cfg.Explain.MaxTokens},
		Retry: RetryOptions{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		},
	}
}

// Service runs the individual question-answering stages against one store
// and one completion client.
type Service struct {
	db     database.DBAdapter
	llm    genai.LLMClient
	opts   Options
	logger *zap.SugaredLogger
}

func NewService(db database.DBAdapter, llm genai.LLMClient, opts Options, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:     db,
		llm:    llm,
		opts:   opts,
		logger: logging.OrNop(logger),
	}
}

// complete issues one completion request for site, retried per the retry options.
func (s *Service) complete(ctx context.Context, site string, cs CallSite, system, user string, jsonOut bool) (string, error) {
	return withRetry(ctx, s.opts.Retry, s.logger, func(ctx context.Context) (string, error) {
		out, err := s.llm.Complete(ctx, genai.CompletionRequest{
			System:      system,
			User:        user,
			Temperature: cs.Temperature,
			MaxTokens:   cs.MaxTokens,
			JSON:        jsonOut,
		})
		observability.ObserveCompletion(site, err)
		if err != nil {
			return "", &CompletionError{Msg: site + " call failed", Err: err}
		}
		return out, nil
	})
}
