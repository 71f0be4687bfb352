// Package api содержит HTTP API планировщика.
//
// Структура:
//   - handler.go           — Handler с DI (scheduler, health checks, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery, лимит тела)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects
//   - scheduled_handler.go — приём отложенных сообщений и /healthz
//
// Сервер принимает сообщения scheduler.HTTPClient:
//
//	POST /api/v1/scheduled-messages
//	GET  /healthz
//	GET  /metrics
package api
