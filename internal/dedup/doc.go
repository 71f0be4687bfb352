// Package dedup защищает от повторной обработки одного сообщения.
//
// На каждый messageId ставится маркер с TTL (окно дедупликации).
// Пока маркер жив, повторная доставка считается дубликатом.
// Проверку нескольких воркеров разводит короткая блокировка:
//
//	<prefix><queue>:<id>:lock   SET NX EX lockTTL
//	<prefix><queue>:<id>        SET NX EX window
//
// Корректность держится на атомарности SET NX EX в хранилище,
// поэтому для нескольких процессов нужен RedisStore.
// MemoryStore подходит для одного процесса и тестов.
package dedup
