package mq

import (
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DelayedExchange — обменник плагина rabbitmq_delayed_message_exchange.
// Сообщение с заголовком x-delay попадает в очередь через указанное число миллисекунд.
const (
	DelayedExchange     = "relay.delayed"
	delayedExchangeKind = "x-delayed-message"
	delayHeader         = "x-delay"
)

// topology объявляет очереди и обменник один раз за время жизни процесса.
type topology struct {
	mu       sync.Mutex
	queues   map[string]bool
	exchange bool
	bound    map[string]bool
}

func newTopology() *topology {
	return &topology{
		queues: make(map[string]bool),
		bound:  make(map[string]bool),
	}
}

// ensureQueue объявляет durable очередь.
func (t *topology) ensureQueue(ch Channel, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queues[name] {
		return nil
	}

	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	t.queues[name] = true
	return nil
}

// ensureDelayed объявляет delayed exchange и привязывает к нему очередь
// с routing key, равным имени очереди.
func (t *topology) ensureDelayed(ch Channel, queue string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.exchange {
		err := ch.ExchangeDeclare(
			DelayedExchange,     // name
			delayedExchangeKind, // type
			true,                // durable
			false,               // auto-deleted
			false,               // internal
			false,               // no-wait
			amqp.Table{"x-delayed-type": "direct"},
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", DelayedExchange, err)
		}
		t.exchange = true
	}

	if t.bound[queue] {
		return nil
	}

	if err := ch.QueueBind(queue, queue, DelayedExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, DelayedExchange, err)
	}

	t.bound[queue] = true
	return nil
}
