// Package worker выполняет jobs, полученные из очереди.
//
// # Обзор
//
// Пакет не зависит от транспорта. Транспорт (mq, sqs) получает
// сообщение и передаёт его в MessageHandler, а затем применяет
// возвращённый Disposition: ack, requeue, drop или retain.
//
// # Ключевые компоненты
//
// ## Executor
//
// Выполняет job через Processor из определения и классифицирует
// результат в domain.Outcome. Panic в обработчике считается
// повторяемой ошибкой.
//
// ## FailResolver
//
// Планирует следующую попытку: инкремент Attempts, расчёт задержки
// стратегией (или подсказкой domain.RetryAfter), Push в целевую очередь.
// При ошибке Push счётчик попыток откатывается.
//
// ## Pipeline
//
// Машина состояний одного сообщения:
//
//	hooks → decode fails               → Drop
//	      → execute → success           → Ack
//	                → retryable         → Resolve → Ack
//	                                              → attempts exhausted → Drop
//	                                              → push failed        → Retain + error
//	                → unresolvable      → Drop
//	                → transport failure → Requeue + error
//
// ## Worker
//
// Цикл потребления одной очереди:
//
//	w := worker.New(worker.Config{
//	    Source:  manager,
//	    Handler: pipeline,
//	    Queue:   "emails",
//	    Logger:  logger,
//	})
//
//	go func() {
//	    <-ctx.Done()
//	    w.Stop()
//	}()
//
//	if err := w.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Ограничения
//
// Таймаут выполнения job не накладывается: зависший Processor
// останавливает воркер.
package worker
