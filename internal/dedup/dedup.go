package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/telemetry"
)

// ErrStore — ошибка хранилища маркеров.
var ErrStore = errors.New("deduplication store failure")

// Default configuration values.
const (
	DefaultPrefix  = "relay:dedup:"
	DefaultWindow  = 300 * time.Second
	DefaultLockTTL = 10 * time.Second

	markerValue = "1"
)

// Store — KV хранилище маркеров.
type Store interface {
	// Get возвращает значение и признак существования ключа.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetNX записывает ключ с TTL, если его нет. false — ключ уже существовал.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error
}

// Config — конфигурация Deduplicator.
type Config struct {
	Store  Store
	Prefix string

	// Window — время жизни маркера.
	Window time.Duration

	// LockTTL — время жизни блокировки на случай падения воркера.
	LockTTL time.Duration

	Logger *slog.Logger
}

// Deduplicator реализует worker.DuplicateChecker.
type Deduplicator struct {
	store   Store
	prefix  string
	window  time.Duration
	lockTTL time.Duration
	logger  *slog.Logger
}

// New создаёт Deduplicator.
func New(cfg Config) *Deduplicator {
	d := &Deduplicator{
		store:   cfg.Store,
		prefix:  cfg.Prefix,
		window:  cfg.Window,
		lockTTL: cfg.LockTTL,
		logger:  telemetry.OrDefault(cfg.Logger),
	}

	if d.prefix == "" {
		d.prefix = DefaultPrefix
	}
	if d.window <= 0 {
		d.window = DefaultWindow
	}
	if d.lockTTL <= 0 {
		d.lockTTL = DefaultLockTTL
	}
	return d
}

// Key возвращает ключ маркера сообщения.
func (d *Deduplicator) Key(queue, messageID string) string {
	return d.prefix + queue + ":" + messageID
}

// IsDuplicate сообщает, видели ли сообщение в пределах окна.
// Первая проверка записывает маркер и возвращает false.
// Сообщения без id не дедуплицируются.
func (d *Deduplicator) IsDuplicate(ctx context.Context, queue, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	key := d.Key(queue, messageID)
	lockKey := key + ":lock"

	locked, err := d.store.SetNX(ctx, lockKey, markerValue, d.lockTTL)
	if err != nil {
		return false, fmt.Errorf("%w: lock %s: %w", ErrStore, key, err)
	}
	if !locked {
		// Сообщение прямо сейчас проверяет другой воркер.
		d.logger.Debug("duplicate message in flight", "queue", queue, "message_id", messageID)
		return true, nil
	}
	defer func() {
		if err := d.store.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
			d.logger.Warn("failed to release deduplication lock", "key", lockKey, "error", err)
		}
	}()

	if _, found, err := d.store.Get(ctx, key); err != nil {
		return false, fmt.Errorf("%w: get %s: %w", ErrStore, key, err)
	} else if found {
		d.logger.Debug("duplicate message", "queue", queue, "message_id", messageID)
		return true, nil
	}

	created, err := d.store.SetNX(ctx, key, markerValue, d.window)
	if err != nil {
		return false, fmt.Errorf("%w: mark %s: %w", ErrStore, key, err)
	}
	return !created, nil
}

// Release удаляет маркер сообщения, чтобы повторная доставка
// не считалась дубликатом.
func (d *Deduplicator) Release(ctx context.Context, queue, messageID string) error {
	if messageID == "" {
		return nil
	}

	key := d.Key(queue, messageID)
	if err := d.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: release %s: %w", ErrStore, key, err)
	}
	d.logger.Debug("deduplication marker released", "queue", queue, "message_id", messageID)
	return nil
}
