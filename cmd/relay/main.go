// Relay — очереди jobs поверх RabbitMQ и SQS.
//
// Использование:
//
//	relay [--json] <command> [flags]
//
// Команды:
//
//	push       Создать job и отправить в очередь
//	check      Проверить соединение с брокером
//	jobs       Список зарегистрированных jobs
//	worker     Потреблять очередь и выполнять jobs
//	scheduler  Принимать и доставлять отложенные сообщения
//
// Конфигурация читается из переменных окружения (RELAY_TRANSPORT,
// RABBITMQ_*, SQS_*, REDIS_*, DEDUP_*, JOBS_*, WORKER_*, SCHEDULER_*, DB_URL).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/app"
	"github.com/shaiso/Relay/internal/cli"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/jobs"
	"github.com/shaiso/Relay/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	logger := telemetry.SetupLogger()
	metrics := telemetry.NewMetrics(nil)

	// setup загружает конфигурацию и создаёт транспорт и реестр jobs.
	setup := func(ctx context.Context) (*app.App, app.Transport, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}

		a := app.New(cfg, logger, metrics)
		transport, err := a.Transport(ctx)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		return a, transport, nil
	}

	depsFn := func(ctx context.Context) (*cli.Deps, error) {
		a, transport, err := setup(ctx)
		if err != nil {
			return nil, err
		}

		defs, err := jobs.Builtin(a.Config.Jobs, nil)
		if err != nil {
			a.Close()
			return nil, err
		}

		return &cli.Deps{Transport: transport, Defs: defs, Close: a.Close}, nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	runWorker := func(ctx context.Context, queue string) error {
		a, transport, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		defs, err := jobs.Builtin(a.Config.Jobs, nil)
		if err != nil {
			return err
		}

		if queue == "" {
			queue = a.Config.Worker.Queue
		}
		w, err := a.Worker(transport, defs, queue)
		if err != nil {
			return err
		}

		logger.Info("starting relay worker", "transport", a.Config.Transport)
		return a.RunWorker(ctx, w, transport)
	}

	runScheduler := func(ctx context.Context) error {
		a, transport, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.Scheduler(ctx, transport)
		if err != nil {
			return err
		}

		logger.Info("starting relay scheduler", "transport", a.Config.Transport)
		return svc.Run(ctx)
	}

	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay — job queues over RabbitMQ and SQS",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		cli.NewPushCmd(depsFn, outputFn),
		cli.NewCheckCmd(depsFn, outputFn),
		cli.NewJobsCmd(depsFn, outputFn),
		cli.NewWorkerCmd(runWorker),
		cli.NewSchedulerCmd(runScheduler),
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
