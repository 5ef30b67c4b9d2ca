package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики выполнения pipeline и индекса коллекции.
var (
	// ModuleComputes — вызовы compute по типам модулей.
	ModuleComputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeflow_module_computes_total",
		Help: "Total module compute calls",
	}, []string{"module_type"})

	// ModuleFailures — ошибки модулей по типам.
	ModuleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeflow_module_failures_total",
		Help: "Total module failures",
	}, []string{"module_type"})

	// ModuleDuration — длительность Update модуля, включая upstream.
	ModuleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeflow_module_duration_seconds",
		Help:    "Module update duration",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"module_type"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeflow_cache_hits_total",
		Help: "Module results reused from the cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeflow_cache_misses_total",
		Help: "Cacheable modules that had to be computed",
	})

	// DetachedConnectors — connector'ы, отключённые из-за несовпадения типов.
	DetachedConnectors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeflow_detached_connectors_total",
		Help: "Connectors detached because the producer type did not match the port",
	})

	// PipelineExecutions — выполнения pipeline по итоговому статусу.
	PipelineExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeflow_pipeline_executions_total",
		Help: "Pipeline executions by status",
	}, []string{"status"})

	// IndexCommits — сохранения индекса коллекции.
	IndexCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeflow_index_commits_total",
		Help: "Collection index commits by result",
	}, []string{"result"})
)
