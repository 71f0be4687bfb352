// Package cli реализует команды утилиты relay.
//
// # Обзор
//
// relay публикует jobs в очередь, проверяет соединение с брокером
// и запускает воркер и планировщик.
// Транспорт и реестр jobs создаются из переменных окружения
// (см. пакет config) после парсинга флагов.
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
//
//	relay jobs --json | jq .
//
// # Commands
//
//   - push JOB: создать job и отправить в очередь
//   - check: проверить соединение с брокером
//   - jobs: список зарегистрированных jobs
//   - worker: потреблять очередь и выполнять jobs
//   - scheduler: принимать отложенные сообщения и доставлять их в срок
//
// Каждая команда создаётся фабричной функцией (NewPushCmd и т.д.),
// принимающей depsFn и outputFn — замыкания для ленивого создания
// зависимостей и Output после парсинга PersistentFlags.
package cli
