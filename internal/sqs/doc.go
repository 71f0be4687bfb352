// Package sqs реализует транспорт AWS SQS.
//
// Структура:
//   - config.go    — параметры подключения и потребления (SQS_*)
//   - client.go    — ленивый клиент, ограниченное пересоздание, кеш URL очередей
//   - manager.go   — Manager и проверка соединения
//   - publisher.go — Push: DelaySeconds до 900 секунд, дальше внешний планировщик
//   - payload.go   — вынос тел больше 256 KiB во внешнее хранилище
//   - consumer.go  — long-poll Consume, дедупликация, удаление сообщений
//
// У SQS нет nack: Drop удаляет сообщение так же, как Ack,
// а Requeue и Retain оставляют его до истечения visibility timeout.
package sqs
