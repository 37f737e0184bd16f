package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(questionsTotal.WithLabelValues("DONE"))
	ObserveQuestion("DONE")
	ObserveQuestion("DONE")
	assert.Equal(t, before+2, testutil.ToFloat64(questionsTotal.WithLabelValues("DONE")))

	okBefore := testutil.ToFloat64(completionCallsTotal.WithLabelValues("select", "ok"))
	errBefore := testutil.ToFloat64(completionCallsTotal.WithLabelValues("select", "error"))
	ObserveCompletion("select", nil)
	ObserveCompletion("select", errors.New("timeout"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(completionCallsTotal.WithLabelValues("select", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(completionCallsTotal.WithLabelValues("select", "error")))

	for _, result := range []string{FileLoaded, FileFailed, FileSkipped} {
		before := testutil.ToFloat64(filesLoadedTotal.WithLabelValues(result))
		ObserveFile(result)
		assert.Equal(t, before+1, testutil.ToFloat64(filesLoadedTotal.WithLabelValues(result)), result)
	}
}

func TestHistograms(t *testing.T) {
	ObserveStage("EXECUTING", 15*time.Millisecond)
	ObserveRows(3)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(stageDurationSeconds), 1)
	assert.Equal(t, 1, testutil.CollectAndCount(queryRowsReturned))
}
