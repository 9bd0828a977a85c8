package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Crohnos/dnd-generator/internal/platform/envutil"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *GaugeVec
	llmRequests  *CounterVec
	llmLatency   *HistogramVec
	llmTokens    *CounterVec
	stageRuns    *CounterVec
	stageLatency *HistogramVec
	stageRows    *CounterVec
	jobRuns      *CounterVec
	jobLatency   *HistogramVec
	pgStats      *GaugeVec

	all []collector
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports whether METRICS_ENABLED is set.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every Metrics method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered metrics set. Init is the process-wide entry point.
func NewMetrics() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("dnd_api_requests_total", "API requests by method/route/status.", "method", "route", "status"),
		apiLatency: NewHistogramVec("dnd_api_request_duration_seconds", "API request latency in seconds.",
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}, "method", "route", "status"),
		apiInflight: NewGaugeVec("dnd_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("dnd_llm_requests_total", "Generative service calls by model/status.", "model", "status"),
		llmLatency: NewHistogramVec("dnd_llm_request_duration_seconds", "Generative service latency in seconds.",
			[]float64{1, 5, 10, 30, 60, 120, 300}, "model", "status"),
		llmTokens: NewCounterVec("dnd_llm_tokens_total", "Generative service tokens by model/direction.", "model", "direction"),
		stageRuns: NewCounterVec("dnd_generation_stage_total", "Generation stages by stage/status.", "stage", "status"),
		stageLatency: NewHistogramVec("dnd_generation_stage_duration_seconds", "Generation stage duration in seconds.",
			[]float64{5, 10, 30, 60, 120, 300, 600}, "stage", "status"),
		stageRows: NewCounterVec("dnd_generation_rows_total", "Rows written by generation stages by stage/outcome.", "stage", "outcome"),
		jobRuns:   NewCounterVec("dnd_job_runs_total", "Job runs by type/status.", "job_type", "status"),
		jobLatency: NewHistogramVec("dnd_job_run_duration_seconds", "Job run duration in seconds.",
			[]float64{1, 10, 60, 300, 900, 1800, 3600}, "job_type", "status"),
		pgStats: NewGaugeVec("dnd_postgres_stats", "Database connection pool stats.", "metric"),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.stageRuns, m.stageLatency, m.stageRows,
		m.jobRuns, m.jobLatency, m.pgStats,
	}
	return m
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.Inc(stage, status)
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

// AddStageRows counts persisted rows; outcome is inserted, stub or dropped.
func (m *Metrics) AddStageRows(stage, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.stageRows.Add(float64(n), stage, outcome)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobLatency.Observe(dur.Seconds(), jobType, status)
}

// StartPostgresCollector samples pool stats until ctx is done.
func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: database pool unavailable", "error", err)
		}
		return
	}
	interval := time.Duration(envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", 10)) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			stats := sqlDB.Stats()
			m.pgStats.Set(float64(stats.OpenConnections), "open")
			m.pgStats.Set(float64(stats.InUse), "in_use")
			m.pgStats.Set(float64(stats.Idle), "idle")
			m.pgStats.Set(float64(stats.WaitCount), "wait_count")
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
