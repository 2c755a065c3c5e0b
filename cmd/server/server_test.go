package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetlabs/signalpipe/internal/classifier"
	"github.com/velvetlabs/signalpipe/internal/config"
	"github.com/velvetlabs/signalpipe/internal/pipeline"
	"github.com/velvetlabs/signalpipe/internal/ratelimit"
	"github.com/velvetlabs/signalpipe/internal/types"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := pipeline.DefaultSettings()
	settings.BatchInterval = 5 * time.Millisecond
	settings.MonitorInterval = time.Hour

	pipe := pipeline.New(classifier.NewRuleClassifier(), settings, pipeline.Options{})
	pipe.Start()
	t.Cleanup(pipe.Stop)

	return setupRouter(pipe, nil)
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAnalyzeEndpoint(t *testing.T) {
	r := testRouter(t)

	body, _ := json.Marshal(map[string]any{
		"text":    "Sure, that's fine I guess.",
		"context": map[string]any{"channel": "chat"},
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.SignalSarcasm, result.Signal)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)
	assert.NotEmpty(t, result.RequestID)
}

func TestAnalyzeRejectsMissingText(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: `{}`},
		{name: "empty text", body: `{"text":""}`},
		{name: "malformed json", body: `{"text":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/analyze", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testRouter(t)

	// Complete one analysis so counters are non-trivial.
	body, _ := json.Marshal(map[string]any{"text": "hello there"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/metrics", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var sample types.PerformanceSample
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sample))
	assert.Equal(t, int64(1), sample.AnalysisCount)
	assert.Greater(t, sample.MemoryEstimate, uint64(0))
}

func TestHistoryEndpoint(t *testing.T) {
	r := testRouter(t)

	body, _ := json.Marshal(map[string]any{"text": "Sure, fine, I guess."})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/history", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestInterventionsEndpoint(t *testing.T) {
	r := testRouter(t)

	body, _ := json.Marshal(map[string]any{"text": "Sure, that's fine I guess."})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/interventions", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sarcasm"`)
}

func TestResetTuningEndpoint(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/config/reset", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tuning reset")
}

func TestRateLimitedAnalyze(t *testing.T) {
	gin.SetMode(gin.TestMode)

	settings := pipeline.DefaultSettings()
	settings.BatchInterval = 5 * time.Millisecond
	settings.MonitorInterval = time.Hour

	pipe := pipeline.New(classifier.NewRuleClassifier(), settings, pipeline.Options{})
	pipe.Start()
	t.Cleanup(pipe.Stop)

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 60, Burst: 1})
	t.Cleanup(limiter.Stop)

	r := setupRouter(pipe, limiter)

	body, _ := json.Marshal(map[string]any{"text": "hello"})

	first := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, _, err := config.Load("")
	require.NoError(t, err)
	cfg.BatchSize = 12
	cfg.BatchInterval = 25 * time.Millisecond
	cfg.WorkerTimeout = 120 * time.Millisecond
	cfg.MaxQueueDepth = 64
	cfg.InterventionCooldown = 3 * time.Second
	return cfg
}

func TestSettingsFromConfigMapsAllTunables(t *testing.T) {
	cfg := testConfig(t)

	s := settingsFromConfig(cfg)

	assert.Equal(t, cfg.BatchSize, s.BatchSize)
	assert.Equal(t, cfg.BatchInterval, s.BatchInterval)
	assert.Equal(t, cfg.WorkerTimeout, s.WorkerTimeout)
	assert.Equal(t, cfg.MaxQueueDepth, s.MaxQueueDepth)
	assert.Equal(t, cfg.EmissionConfidenceThreshold, s.EmissionConfidenceThreshold)
	assert.Equal(t, cfg.InterventionCooldown, s.InterventionCooldown)
	assert.Equal(t, cfg.HistoryCapacity, s.HistoryCapacity)
	assert.Equal(t, cfg.MemoryCeiling, s.MemoryCeiling)
	assert.Equal(t, cfg.LatencyCeiling, s.LatencyCeiling)
}
