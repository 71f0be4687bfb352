// Package jobs содержит встроенные определения jobs для команды relay worker.
//
// Структура:
//   - webhook.go — webhook: HTTP запрос к внешнему сервису
//   - sleep.go   — sleep: пауза заданной длительности (проверка конвейера)
//   - builtin.go — сборка реестра с политиками повторов
//
// Параметры webhook:
//
//	{
//	    "url": "https://hooks.example.com/orders",   // обязательно
//	    "method": "POST",                            // default: POST
//	    "headers": {"Authorization": "Bearer ..."},
//	    "body": {"order_id": 42},
//	    "timeout_sec": 10
//	}
//
// Классификация ответов webhook:
//   - 2xx         — успех
//   - 429, 5xx    — повтор (Retry-After становится подсказкой задержки)
//   - прочие 4xx  — unresolvable, без повторов
package jobs
