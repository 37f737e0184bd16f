package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetquery_questions_total",
			Help: "Questions processed, by final controller state.",
		},
		[]string{"outcome"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetquery_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	completionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetquery_completion_calls_total",
			Help: "Completion service calls, by call site and result.",
		},
		[]string{"call_site", "result"},
	)

	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetquery_query_rows_returned",
			Help:    "Rows returned by generated queries.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
		},
	)

	filesLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetquery_files_loaded_total",
			Help: "Spreadsheet files processed by the loader.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(questionsTotal, stageDurationSeconds, completionCallsTotal, queryRowsReturned, filesLoadedTotal)
}

func ObserveQuestion(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveCompletion counts one completion call; err == nil is a success.
func ObserveCompletion(callSite string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	completionCallsTotal.WithLabelValues(callSite, result).Inc()
}

func ObserveRows(n int) {
	queryRowsReturned.Observe(float64(n))
}

// Loader file outcomes.
const (
	FileLoaded  = "loaded"
	FileFailed  = "failed"
	FileSkipped = "skipped"
)

// ObserveFile counts one loader file under result, one of the File* outcomes.
func ObserveFile(result string) {
	filesLoadedTotal.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
