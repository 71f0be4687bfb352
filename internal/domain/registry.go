package domain

import (
	"fmt"
	"sort"
	"sync"
)

// Definitions — реестр определений job по имени.
//
// Собирается один раз при старте и передаётся компонентам явно.
// Потокобезопасен.
type Definitions struct {
	mu   sync.RWMutex
	defs map[string]*JobDefinition
}

// NewDefinitions создаёт реестр из определений.
// Возвращает ошибку при некорректном или повторяющемся определении.
func NewDefinitions(defs ...*JobDefinition) (*Definitions, error) {
	r := &Definitions{defs: make(map[string]*JobDefinition, len(defs))}

	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register добавляет определение.
func (r *Definitions) Register(def *JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w %q: already registered", ErrInvalidDefinition, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get возвращает определение по имени.
// Отсутствие определения — неисправимая ошибка (UnresolvableError).
func (r *Definitions) Get(name string) (*JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, &UnresolvableError{
			Err: fmt.Errorf("%w: %s", ErrUnknownJobDefinition, name),
		}
	}
	return def, nil
}

// Has проверяет, зарегистрировано ли определение.
func (r *Definitions) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Names возвращает отсортированный список имён.
func (r *Definitions) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queues возвращает отсортированный список очередей всех определений.
func (r *Definitions) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, def := range r.defs {
		seen[def.QueueName] = struct{}{}
	}

	queues := make([]string, 0, len(seen))
	for q := range seen {
		queues = append(queues, q)
	}
	sort.Strings(queues)
	return queues
}
