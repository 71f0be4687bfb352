package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Relay/internal/api"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/worker"
)

// ShutdownTimeout — время на завершение HTTP запросов при остановке.
const ShutdownTimeout = 10 * time.Second

// Serve обслуживает HTTP на addr до отмены ctx, затем выполняет graceful shutdown.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return serveListener(ctx, ln, handler, logger)
}

func serveListener(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// WorkerHandler — /healthz и /metrics воркера.
func (a *App) WorkerHandler(transport Transport) http.Handler {
	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Checks:  []api.HealthCheck{{Name: "broker", Check: transport.CheckConnection}},
		Metrics: promhttp.Handler(),
		Logger:  a.Logger,
	}).RegisterRoutes(mux)
	return mux
}

// RunWorker запускает воркер и его HTTP сервер. Возвращается после отмены ctx
// или ошибки одного из них.
func (a *App) RunWorker(ctx context.Context, w *worker.Worker, transport Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return w.Run(ctx)
	})
	g.Go(func() error {
		return Serve(ctx, a.Config.Worker.Addr, a.WorkerHandler(transport), a.Logger)
	})

	return g.Wait()
}

// SchedulerService — хранилище отложенных сообщений, диспетчер и HTTP приём.
type SchedulerService struct {
	Store      *scheduler.PostgresStore
	Dispatcher *scheduler.Dispatcher
	Handler    http.Handler

	addr   string
	logger *slog.Logger
}

// Scheduler подключается к Postgres, создаёт схему и собирает SchedulerService.
// Сообщения доставляются через deliverer.
func (a *App) Scheduler(ctx context.Context, deliverer scheduler.Deliverer) (*SchedulerService, error) {
	pool, err := scheduler.NewPool(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.onClose(func() error {
		pool.Close()
		return nil
	})

	store := scheduler.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	dispatcher := scheduler.NewDispatcher(scheduler.DispatcherConfig{
		Store:     store,
		Locker:    store,
		Deliverer: deliverer,
		Logger:    a.Logger,
		BatchSize: a.Config.Sched.BatchSize,
		Interval:  a.Config.Sched.Interval,

		MaxDeliveryAttempts: a.Config.Sched.MaxDeliveryAttempts,
		RetryDelay:          a.Config.Sched.RetryDelay,
	})

	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Scheduler: store,
		Checks:    []api.HealthCheck{{Name: "postgres", Check: pool.Ping}},
		Metrics:   promhttp.Handler(),
		Logger:    a.Logger,
	}).RegisterRoutes(mux)

	return &SchedulerService{
		Store:      store,
		Dispatcher: dispatcher,
		Handler:    mux,
		addr:       a.Config.Sched.Addr,
		logger:     a.Logger,
	}, nil
}

// Run запускает диспетчер и HTTP API до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Dispatcher.Run(ctx)
	})
	g.Go(func() error {
		return Serve(ctx, s.addr, s.Handler, s.logger)
	})

	return g.Wait()
}
