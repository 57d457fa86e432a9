package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	metricsvc "github.com/trezcool/admissions/services/metrics"
)

func Test_debugMux(t *testing.T) {
	recorder := metricsvc.NewRecorder()
	recorder.NoShows(1)
	mux := debugMux(recorder)

	tests := []struct {
		path     string
		wantBody string
	}{
		{path: "/metrics", wantBody: "admissions_visit_no_shows_total 1"},
		{path: "/debug/vars", wantBody: `"memstats"`},
		{path: "/debug/pprof/", wantBody: "goroutine"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
