package metricsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.Claim(core.StepReminder24h, true)
	r.Claim(core.StepReminder24h, false)
	r.Claim(core.StepReminder24h, false)
	r.Notification("24h", true)
	r.Notification("2h", false)
	r.NoShows(3)
	r.NoShows(0)
	r.TasksOpened("visit-no-show", 2)
	r.TasksCancelled(4)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.claims.WithLabelValues(core.StepReminder24h, "true")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.claims.WithLabelValues(core.StepReminder24h, "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.notifications.WithLabelValues("24h", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.notifications.WithLabelValues("2h", "false")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.noShows))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.tasksOpened.WithLabelValues("visit-no-show")))
	assert.Equal(t, float64(4), testutil.ToFloat64(r.tasksCancelled))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.NoShows(2)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "admissions_visit_no_shows_total 2")
	assert.Contains(t, string(body), "go_goroutines")
}
