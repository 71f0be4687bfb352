// Package scheduler реализует отложенную доставку сообщений через внешний планировщик.
//
// Нативная задержка SQS ограничена 15 минутами. Более длинные задержки
// передаются планировщику: он хранит сообщение и в нужное время
// кладёт его в целевую очередь.
//
// Структура:
//   - message.go    — ScheduledMessage и контракт Scheduler
//   - client.go     — HTTPClient для внешнего планировщика
//   - store.go      — PostgresStore: хранение, выборка due, advisory lock
//   - dispatcher.go — Dispatcher: доставка due сообщений лидером
//
// Использование:
//
//	store := scheduler.NewPostgresStore(pool)
//
//	d := scheduler.NewDispatcher(scheduler.DispatcherConfig{
//	    Store:     store,
//	    Locker:    store,
//	    Deliverer: sqsManager,
//	    Logger:    logger,
//	})
//
//	if err := d.Run(ctx); err != nil {
//	    logger.Error("dispatcher failed", "error", err)
//	}
//
// Leader Election:
//
// Тики выполняет только экземпляр, получивший pg_try_advisory_lock.
// Строки дополнительно блокируются FOR UPDATE SKIP LOCKED.
package scheduler
