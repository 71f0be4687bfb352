// Package domain содержит модель jobs и классификацию ошибок.
//
// Job передаётся через очередь в JSON-конверте (Envelope). JobDefinition
// задаёт очередь, лимит попыток, Loader, стратегию повторов и Processor.
// Definitions — реестр определений по имени; JobLoader восстанавливает
// job из тела сообщения через Loader определения.
//
// Ошибки обработчика классифицируются в Outcome (Classify):
//   - nil — Success
//   - UnresolvableError — Unresolvable, job отбрасывается
//   - ConsumerFailedError — TransportFailure, сообщение возвращается брокеру
//   - остальные — Retryable, job повторяется по стратегии
package domain
