// Package mq реализует транспорт RabbitMQ.
//
// Структура:
//   - config.go     — параметры подключения (RABBITMQ_*), проверка обязательных
//   - connection.go — ленивое соединение, ограниченное число переподключений;
//     у менеджера отдельные соединения для потребления и публикации
//   - topology.go   — однократное объявление очередей и delayed exchange
//   - publisher.go  — Push с задержкой через заголовок x-delay
//   - consumer.go   — Consume и применение Disposition (ack/reject/nack)
//
// Отложенная доставка требует плагина rabbitmq_delayed_message_exchange:
//
//	relay.delayed (x-delayed-message, x-delayed-type=direct)
//	└── <queue> [routing: <queue>]
//
// Сообщения без задержки публикуются в default exchange.
package mq
