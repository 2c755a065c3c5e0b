// Command server exposes the analysis pipeline over HTTP: an analyze
// endpoint for utterance fragments, read-only history/metrics endpoints,
// Prometheus metrics, and pprof.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/velvetlabs/signalpipe/internal/apperrors"
	"github.com/velvetlabs/signalpipe/internal/classifier"
	"github.com/velvetlabs/signalpipe/internal/config"
	"github.com/velvetlabs/signalpipe/internal/monitoring"
	"github.com/velvetlabs/signalpipe/internal/pipeline"
	"github.com/velvetlabs/signalpipe/internal/ratelimit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, v, err := config.Load(os.Getenv("SIGNALPIPE_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger()
	tracker := monitoring.NewPerformanceTracker()
	promMetrics := monitoring.NewPipelineMetrics(prometheus.DefaultRegisterer)

	// Rule-based classification by default; a remote scoring service when
	// configured. Either way, identical fragments inside the cache TTL
	// skip classification entirely.
	var cls classifier.Classifier = classifier.NewRuleClassifier()
	if cfg.ClassifierEndpoint != "" {
		slog.Info("using remote classifier", "endpoint", cfg.ClassifierEndpoint)
		cls = classifier.NewRemoteClassifier(cfg.ClassifierEndpoint)
	}
	cached := classifier.NewCachedClassifier(cls, cfg.CacheSize, cfg.CacheTTL)

	pipe := pipeline.New(cached, settingsFromConfig(cfg), pipeline.Options{
		Logger:  appLogger,
		Tracker: tracker,
		Metrics: promMetrics,
	})
	pipe.Start()

	// Hot reload: tunables picked up on config file change.
	config.Watch(v, func(fresh config.Config) {
		pipe.Reconfigure(settingsFromConfig(&fresh))
	})

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})

	r := setupRouter(pipe, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	pipe.Stop()
	limiter.Stop()
	slog.Info("shutdown complete")
}

// settingsFromConfig maps the flat configuration onto pipeline settings.
func settingsFromConfig(cfg *config.Config) pipeline.Settings {
	return pipeline.Settings{
		BatchSize:        cfg.BatchSize,
		MaxBatchSize:     cfg.MaxBatchSize,
		BatchInterval:    cfg.BatchInterval,
		MinBatchInterval: cfg.MinBatchInterval,
		WorkerTimeout:    cfg.WorkerTimeout,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		WorkerCount:      cfg.WorkerCount,
		HistoryCapacity:  cfg.HistoryCapacity,

		EmissionConfidenceThreshold: cfg.EmissionConfidenceThreshold,
		InterventionCooldown:        cfg.InterventionCooldown,
		DebounceRetention:           cfg.DebounceRetention,

		MemoryCeiling:   cfg.MemoryCeiling,
		LatencyCeiling:  cfg.LatencyCeiling,
		MonitorInterval: cfg.MonitorInterval,
	}
}

// setupRouter builds the HTTP surface around a started pipeline.
func setupRouter(pipe *pipeline.Pipeline, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	registerPprof(r)

	api := r.Group("/api")
	{
		if limiter != nil {
			api.POST("/analyze", limiter.Middleware(), analyzeHandler(pipe))
		} else {
			api.POST("/analyze", analyzeHandler(pipe))
		}
		api.GET("/metrics", metricsHandler(pipe))
		api.GET("/history", historyHandler(pipe))
		api.GET("/interventions", interventionsHandler(pipe))
		api.POST("/config/reset", resetTuningHandler(pipe))
	}

	return r
}

func registerPprof(r *gin.Engine) {
	group := r.Group("/debug/pprof")
	group.GET("/", gin.WrapF(pprof.Index))
	group.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	group.GET("/profile", gin.WrapF(pprof.Profile))
	group.GET("/symbol", gin.WrapF(pprof.Symbol))
	group.GET("/trace", gin.WrapF(pprof.Trace))
	group.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	group.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// analyzeRequest is the inbound payload for POST /api/analyze.
type analyzeRequest struct {
	Text    string         `json:"text" binding:"required"`
	Context map[string]any `json:"context"`
}

// analyzeHandler classifies one fragment synchronously.
// @Summary Analyze a text fragment for social/emotional signal
// @Accept json
// @Produce json
// @Param request body analyzeRequest true "fragment to analyze"
// @Success 200 {object} types.AnalysisResult
// @Router /api/analyze [post]
func analyzeHandler(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		result, err := pipe.AnalyzeWait(ctx, req.Text, req.Context)
		if err != nil {
			status := apperrors.HTTPStatusOf(err)
			c.JSON(status, gin.H{
				"error": err.Error(),
				"kind":  string(apperrors.KindOf(err)),
			})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func metricsHandler(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pipe.Metrics())
	}
}

func historyHandler(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		history := pipe.History()
		c.JSON(http.StatusOK, gin.H{
			"count":   len(history),
			"results": history,
		})
	}
}

func interventionsHandler(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := pipe.Interventions()
		c.JSON(http.StatusOK, gin.H{
			"count":         len(records),
			"interventions": records,
		})
	}
}

// resetTuningHandler is the explicit loosen path: the auto-tuner only ever
// tightens on its own.
func resetTuningHandler(pipe *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		pipe.ResetTuning()
		c.JSON(http.StatusOK, gin.H{"status": "tuning reset"})
	}
}
