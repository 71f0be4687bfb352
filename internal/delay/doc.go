// Package delay содержит стратегии повторов (FailResolveStrategy).
//
// Стратегия отвечает на два вопроса для упавшего job:
// через сколько миллисекунд повторить и в какую очередь отправить.
//
// Реализации:
//   - Constant       — фиксированная задержка, та же очередь
//   - Exponential    — initialDelay * 2^(attempts-1), ограничено maximumDelay
//   - Defined        — таблица порогов попыток, delay = attempts * base, ограничено maximumDelay
//   - DifferentQueue — без задержки, в другую очередь
//
// Базовая единица — миллисекунды. Секунды получаются целочисленным делением на 1000.
package delay
