// Package telemetry — логирование и метрики relay.
//
// SetupLogger настраивает slog по LOG_LEVEL и LOG_FORMAT. JobAttrs и
// ErrorAttrs дают единый набор атрибутов для логов обработки:
// job_uuid, job_name, attempts, queue, error, previous_error.
//
// Metrics регистрирует счётчики выполнений, повторов, переподключений,
// дубликатов и итоговых решений по сообщениям. Методы Metrics
// допускают nil-получатель.
package telemetry
