// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (LOG_LEVEL, LOG_FORMAT)
//   - metrics.go — Prometheus метрики выполнения и индекса
//
// Метрики регистрируются в глобальном registry через promauto
// и отдаются promhttp.Handler() на /metrics, если CLI запущен
// с --metrics-addr.
package telemetry
