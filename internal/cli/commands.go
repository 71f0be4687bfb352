package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/worker"
)

// ErrInvalidParam — параметр не в формате KEY=VALUE.
var ErrInvalidParam = errors.New("invalid parameter")

// Transport — то, что нужно командам от менеджера очередей.
type Transport interface {
	worker.Pusher
	CheckConnection(ctx context.Context) error
}

// Deps — зависимости команд.
type Deps struct {
	Transport Transport
	Defs      *domain.Definitions

	// Close освобождает транспорт. Может быть nil.
	Close func() error
}

func (d *Deps) close() {
	if d.Close != nil {
		d.Close()
	}
}

// DepsFunc создаёт зависимости после парсинга флагов.
type DepsFunc func(ctx context.Context) (*Deps, error)

// NewPushCmd создаёт команду публикации job.
func NewPushCmd(depsFn DepsFunc, outputFn func() *Output) *cobra.Command {
	var params []string
	var delay time.Duration
	var queue string

	cmd := &cobra.Command{
		Use:   "push JOB",
		Short: "Create a job and push it to its queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if delay < 0 {
				return fmt.Errorf("delay must be >= 0, got %s", delay)
			}

			parsed, err := ParseParams(params)
			if err != nil {
				return err
			}

			deps, err := depsFn(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.close()

			def, err := deps.Defs.Get(args[0])
			if err != nil {
				return err
			}

			job := domain.NewJob(def, parsed)
			target := queue
			if target == "" {
				target = job.QueueName()
			}

			if err := deps.Transport.Push(cmd.Context(), job, delay, target); err != nil {
				return fmt.Errorf("push job %s: %w", def.Name, err)
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Job pushed: %s", job.UUID))
			return out.Print(
				[]string{"UUID", "JOB", "QUEUE", "DELAY"},
				[][]string{{job.UUID, job.Name, target, delay.String()}},
				PushResult{UUID: job.UUID, Job: job.Name, Queue: target, DelayMs: delay.Milliseconds()},
			)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Job parameter as KEY=VALUE, VALUE may be JSON (repeatable)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delivery delay (e.g. 30s, 2h)")
	cmd.Flags().StringVar(&queue, "queue", "", "Target queue (job definition queue if not specified)")

	return cmd
}

// PushResult — результат push в JSON режиме.
type PushResult struct {
	UUID    string `json:"uuid"`
	Job     string `json:"job"`
	Queue   string `json:"queue"`
	DelayMs int64  `json:"delayMs"`
}

// NewCheckCmd создаёт команду проверки соединения с брокером.
func NewCheckCmd(depsFn DepsFunc, outputFn func() *Output) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check connection to the message broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := deps.Transport.CheckConnection(ctx); err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}

			outputFn().Success("Connection OK")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Check timeout")

	return cmd
}

// JobInfo — определение job в выводе jobs.
type JobInfo struct {
	Name        string `json:"name"`
	Queue       string `json:"queue"`
	MaxAttempts int    `json:"maxAttempts"`
}

// NewJobsCmd создаёт команду вывода зарегистрированных jobs.
func NewJobsCmd(depsFn DepsFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List registered jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.close()

			names := deps.Defs.Names()
			infos := make([]JobInfo, 0, len(names))
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				def, err := deps.Defs.Get(name)
				if err != nil {
					return err
				}

				attempts := "unlimited"
				if def.MaxAttempts > 0 {
					attempts = strconv.Itoa(def.MaxAttempts)
				}

				infos = append(infos, JobInfo{Name: def.Name, Queue: def.QueueName, MaxAttempts: def.MaxAttempts})
				rows = append(rows, []string{def.Name, def.QueueName, attempts})
			}

			return outputFn().Print([]string{"NAME", "QUEUE", "MAX_ATTEMPTS"}, rows, infos)
		},
	}
}

// ParseParams разбирает параметры KEY=VALUE.
// VALUE, который разбирается как JSON, сохраняется как JSON значение,
// иначе как строка.
func ParseParams(kvs []string) (map[string]any, error) {
	params := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q, expected KEY=VALUE", ErrInvalidParam, kv)
		}

		var val any
		if err := json.Unmarshal([]byte(raw), &val); err != nil {
			val = raw
		}
		params[key] = val
	}
	return params, nil
}

// NewWorkerCmd создаёт команду запуска воркера.
// run блокируется до отмены контекста команды.
func NewWorkerCmd(run func(ctx context.Context, queue string) error) *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume a queue and execute jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), queue)
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Queue to consume (WORKER_QUEUE if not specified)")

	return cmd
}

// NewSchedulerCmd создаёт команду запуска планировщика отложенных сообщений.
func NewSchedulerCmd(run func(ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Accept scheduled messages over HTTP and deliver them when due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}
