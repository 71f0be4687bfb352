package sqs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/shaiso/Relay/internal/dedup"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/worker"
)

// --- Test helpers ---

type fakeAPI struct {
	mu       sync.Mutex
	sent     []*awssqs.SendMessageInput
	deleted  []string
	created  []string
	lookups  int
	sendErrs []error
	batches  [][]types.Message
	exists   bool
}

func (f *fakeAPI) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.sent = append(f.sent, in)
	return &awssqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeAPI) ReceiveMessage(ctx context.Context, _ *awssqs.ReceiveMessageInput, _ ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.batches) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()

	return &awssqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, in *awssqs.DeleteMessageInput, _ ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &awssqs.DeleteMessageOutput{}, nil
}

func (f *fakeAPI) GetQueueUrl(_ context.Context, in *awssqs.GetQueueUrlInput, _ ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups++
	if !f.exists {
		return nil, &types.QueueDoesNotExist{Message: aws.String("no such queue")}
	}
	return &awssqs.GetQueueUrlOutput{QueueUrl: aws.String(queueURLFor(aws.ToString(in.QueueName)))}, nil
}

func (f *fakeAPI) CreateQueue(_ context.Context, in *awssqs.CreateQueueInput, _ ...func(*awssqs.Options)) (*awssqs.CreateQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(in.QueueName)
	f.created = append(f.created, name)
	return &awssqs.CreateQueueOutput{QueueUrl: aws.String(queueURLFor(name))}, nil
}

func (f *fakeAPI) ListQueues(context.Context, *awssqs.ListQueuesInput, ...func(*awssqs.Options)) (*awssqs.ListQueuesOutput, error) {
	return &awssqs.ListQueuesOutput{}, nil
}

func queueURLFor(name string) string {
	return "http://localhost:4566/000000000000/" + name
}

type factory struct {
	api   *fakeAPI
	calls int
}

func (f *factory) create(context.Context, Config) (API, error) {
	f.calls++
	return f.api, nil
}

type recordingScheduler struct {
	messages []scheduler.ScheduledMessage
	err      error
}

func (s *recordingScheduler) ScheduleMessage(_ context.Context, msg scheduler.ScheduledMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type recordingListener struct {
	events []string
}

func (l *recordingListener) BeforeExecutionPlanned(context.Context, *domain.Job, time.Time) {
	l.events = append(l.events, "before")
}

func (l *recordingListener) AfterExecutionPlanned(_ context.Context, _ *domain.Job, _ time.Time, err error) {
	if err != nil {
		l.events = append(l.events, "after:error")
		return
	}
	l.events = append(l.events, "after")
}

type memoryPayloads struct {
	blobs   map[string][]byte
	deleted []string
}

func (p *memoryPayloads) Put(_ context.Context, key string, body []byte) error {
	p.blobs[key] = body
	return nil
}

func (p *memoryPayloads) Get(_ context.Context, key string) ([]byte, error) {
	body, ok := p.blobs[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return body, nil
}

func (p *memoryPayloads) Delete(_ context.Context, key string) error {
	p.deleted = append(p.deleted, key)
	delete(p.blobs, key)
	return nil
}

type fakeChecker struct {
	duplicates map[string]bool
}

func (c fakeChecker) IsDuplicate(_ context.Context, _, id string) (bool, error) {
	return c.duplicates[id], nil
}

func (c fakeChecker) Release(context.Context, string, string) error { return nil }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Version:             "2012-11-05",
		Region:              "eu-west-1",
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		MaxReconnects:       3,
		ReconnectBackoff:    time.Millisecond,
	}
}

func newTestManager(t *testing.T, api *fakeAPI, mutate func(*ManagerConfig)) (*Manager, *factory) {
	t.Helper()

	f := &factory{api: api}
	cfg := ManagerConfig{
		Config:  testConfig(),
		Factory: f.create,
		Logger:  slog.New(slog.DiscardHandler),
		Clock:   func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, f
}

func testJob() *domain.Job {
	def := &domain.JobDefinition{
		Name:        "send_email",
		QueueName:   "emails",
		MaxAttempts: 5,
		Processor:   domain.ProcessorFunc(func(context.Context, *domain.Job) error { return nil }),
	}
	return domain.NewJob(def, map[string]any{"to": "user@example.com"})
}

func rawMessage(id string, attrs map[string]types.MessageAttributeValue) types.Message {
	return types.Message{
		MessageId:         aws.String(id),
		ReceiptHandle:     aws.String("rh-" + id),
		Body:              aws.String("{}"),
		MessageAttributes: attrs,
	}
}

// --- Config Tests ---

func TestConfig_Validate_EnumeratesMissing(t *testing.T) {
	err := Config{}.Validate()

	if !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "version, region") {
		t.Errorf("expected missing keys in message, got %q", err.Error())
	}
}

func TestConfig_ValidateConsume(t *testing.T) {
	tests := []struct {
		name     string
		messages int
		wait     int
		wantErr  bool
	}{
		{"defaults", 1, 20, false},
		{"max batch", 10, 0, false},
		{"zero messages", 0, 20, true},
		{"too many messages", 11, 20, true},
		{"negative wait", 1, -1, true},
		{"wait too long", 1, 21, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxNumberOfMessages = tt.messages
			cfg.WaitTimeSeconds = tt.wait

			err := cfg.validateConsume()
			if tt.wantErr && !errors.Is(err, ErrInvalidConsumeParams) {
				t.Errorf("expected ErrInvalidConsumeParams, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestManager_Consume_InvalidParams(t *testing.T) {
	m, f := newTestManager(t, &fakeAPI{}, func(c *ManagerConfig) { c.Config.MaxNumberOfMessages = 20 })

	err := m.Consume(context.Background(), "emails", worker.HandlerFunc(
		func(context.Context, string, worker.Message) (worker.Disposition, error) { return worker.Ack, nil },
	))
	if !errors.Is(err, ErrInvalidConsumeParams) {
		t.Errorf("expected ErrInvalidConsumeParams, got %v", err)
	}
	if f.calls != 0 {
		t.Errorf("expected no client created, got %d", f.calls)
	}
}

// --- Push Tests ---

func TestManager_Push_NativeDelay(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		want  int32
	}{
		{"immediate", 0, 0},
		{"truncates fraction", 1500 * time.Millisecond, 1},
		{"maximum", 900 * time.Second, 900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{exists: true}
			m, _ := newTestManager(t, api, nil)

			if err := m.Push(context.Background(), testJob(), tt.delay, ""); err != nil {
				t.Fatalf("Push: %v", err)
			}

			in := api.sent[0]
			if in.DelaySeconds != tt.want {
				t.Errorf("expected DelaySeconds %d, got %d", tt.want, in.DelaySeconds)
			}
			if aws.ToString(in.QueueUrl) != queueURLFor("emails") {
				t.Errorf("unexpected queue url %q", aws.ToString(in.QueueUrl))
			}
		})
	}
}

func TestManager_Push_ClampsWithoutScheduler(t *testing.T) {
	api := &fakeAPI{exists: true}
	m, _ := newTestManager(t, api, nil)

	if err := m.Push(context.Background(), testJob(), time.Hour, "emails.retry"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	in := api.sent[0]
	if in.DelaySeconds != MaxDelaySeconds {
		t.Errorf("expected DelaySeconds %d, got %d", MaxDelaySeconds, in.DelaySeconds)
	}
	if aws.ToString(in.QueueUrl) != queueURLFor("emails.retry") {
		t.Errorf("unexpected queue url %q", aws.ToString(in.QueueUrl))
	}
}

func TestManager_Push_HandsOffToScheduler(t *testing.T) {
	api := &fakeAPI{exists: true}
	sched := &recordingScheduler{}
	listener := &recordingListener{}
	m, _ := newTestManager(t, api, func(c *ManagerConfig) {
		c.Scheduler = sched
		c.BrandID = "acme"
		c.PlanListeners = []worker.ExecutionPlanListener{listener}
	})

	job := testJob()
	if err := m.Push(context.Background(), job, 20*time.Minute, ""); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if len(api.sent) != 0 {
		t.Errorf("expected no SQS send, got %d", len(api.sent))
	}
	if len(sched.messages) != 1 {
		t.Fatalf("expected 1 scheduled message, got %d", len(sched.messages))
	}

	msg := sched.messages[0]
	wantAt := testNow.Add(20 * time.Minute)
	if !msg.DeliveryScheduledAt.Equal(wantAt) {
		t.Errorf("expected delivery at %v, got %v", wantAt, msg.DeliveryScheduledAt)
	}
	if msg.DestinationQueueName != "emails" || msg.BrandID != "acme" || msg.JobID != job.UUID {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.RemainingRetries != 4 {
		t.Errorf("expected 4 remaining retries, got %d", msg.RemainingRetries)
	}
	if job.ExecutionPlannedAt == nil || !job.ExecutionPlannedAt.Equal(wantAt) {
		t.Errorf("expected ExecutionPlannedAt %v, got %v", wantAt, job.ExecutionPlannedAt)
	}
	if strings.Join(listener.events, ",") != "before,after" {
		t.Errorf("unexpected listener events %v", listener.events)
	}
}

func TestManager_Push_SchedulerFailure(t *testing.T) {
	schedErr := errors.New("scheduler down")
	listener := &recordingListener{}
	m, _ := newTestManager(t, &fakeAPI{exists: true}, func(c *ManagerConfig) {
		c.Scheduler = &recordingScheduler{err: schedErr}
		c.PlanListeners = []worker.ExecutionPlanListener{listener}
	})

	job := testJob()
	if err := m.Push(context.Background(), job, time.Hour, ""); !errors.Is(err, schedErr) {
		t.Fatalf("expected scheduler error, got %v", err)
	}

	if job.ExecutionPlannedAt != nil {
		t.Errorf("expected ExecutionPlannedAt restored, got %v", job.ExecutionPlannedAt)
	}
	if strings.Join(listener.events, ",") != "before,after:error" {
		t.Errorf("unexpected listener events %v", listener.events)
	}
}

func TestManager_Push_CreatesQueueOnce(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestManager(t, api, nil)

	for range 3 {
		if err := m.Push(context.Background(), testJob(), 0, ""); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	if api.lookups != 1 {
		t.Errorf("expected 1 url lookup, got %d", api.lookups)
	}
	if len(api.created) != 1 || api.created[0] != "emails" {
		t.Errorf("expected emails created once, got %v", api.created)
	}
	if len(api.sent) != 3 {
		t.Errorf("expected 3 sends, got %d", len(api.sent))
	}
}

func TestManager_Push_OffloadsLargePayload(t *testing.T) {
	api := &fakeAPI{exists: true}
	payloads := &memoryPayloads{blobs: map[string][]byte{}}
	m, _ := newTestManager(t, api, func(c *ManagerConfig) { c.Payloads = payloads })

	job := testJob()
	job.SetParameter("attachment", strings.Repeat("x", MaxMessageSize))

	if err := m.Push(context.Background(), job, 0, ""); err != nil {
		t.Fatalf("Push: %v", err)
	}

	in := api.sent[0]
	attr, ok := in.MessageAttributes[PayloadKeyAttribute]
	if !ok {
		t.Fatal("expected payload key attribute")
	}
	key := aws.ToString(attr.StringValue)
	if aws.ToString(in.MessageBody) != key {
		t.Errorf("expected body to be the payload key, got %d bytes", len(aws.ToString(in.MessageBody)))
	}
	if !strings.HasPrefix(key, "relay/emails/") {
		t.Errorf("unexpected key %q", key)
	}
	if len(payloads.blobs[key]) <= MaxMessageSize {
		t.Errorf("expected stored body larger than limit, got %d", len(payloads.blobs[key]))
	}
}

func TestManager_Push_LargePayloadWithoutStore(t *testing.T) {
	api := &fakeAPI{exists: true}
	m, _ := newTestManager(t, api, nil)

	job := testJob()
	job.SetParameter("attachment", strings.Repeat("x", MaxMessageSize))

	err := m.Push(context.Background(), job, 0, "")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	var unresolvable *domain.UnresolvableError
	if !errors.As(err, &unresolvable) {
		t.Error("expected UnresolvableError")
	}
	if len(api.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(api.sent))
	}
}

// --- Reconnect Tests ---

func TestManager_Push_RecreatesClientOnServerError(t *testing.T) {
	serverErr := &smithy.GenericAPIError{Code: "InternalError", Message: "boom", Fault: smithy.FaultServer}
	api := &fakeAPI{exists: true, sendErrs: []error{serverErr}}
	m, f := newTestManager(t, api, nil)

	if err := m.Push(context.Background(), testJob(), 0, ""); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if f.calls != 2 {
		t.Errorf("expected client recreated, got %d factory calls", f.calls)
	}
	if len(api.sent) != 1 {
		t.Errorf("expected 1 send, got %d", len(api.sent))
	}
}

func TestManager_ReconnectLimit(t *testing.T) {
	serverErr := &smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer}
	api := &fakeAPI{exists: true, sendErrs: []error{serverErr, serverErr, serverErr, serverErr, serverErr}}
	m, f := newTestManager(t, api, nil)

	err := m.Push(context.Background(), testJob(), 0, "")
	if !errors.Is(err, ErrReconnectLimit) {
		t.Fatalf("expected ErrReconnectLimit, got %v", err)
	}
	if !strings.Contains(err.Error(), "maximum reconnect limit reached") {
		t.Errorf("unexpected message %q", err.Error())
	}

	var consumerErr *domain.ConsumerFailedError
	if !errors.As(err, &consumerErr) {
		t.Error("expected ConsumerFailedError")
	}

	// 1 первоначальный клиент + 3 пересоздания
	if f.calls != 4 {
		t.Errorf("expected 4 factory calls, got %d", f.calls)
	}
}

func TestManager_ClientErrorIsReturned(t *testing.T) {
	clientErr := &smithy.GenericAPIError{Code: "InvalidParameterValue", Fault: smithy.FaultClient}
	api := &fakeAPI{exists: true, sendErrs: []error{clientErr}}
	m, f := newTestManager(t, api, nil)

	if err := m.Push(context.Background(), testJob(), 0, ""); !errors.Is(err, clientErr) {
		t.Errorf("expected client error, got %v", err)
	}
	if f.calls != 1 {
		t.Errorf("expected no client rebuild, got %d factory calls", f.calls)
	}
}

func TestManager_CheckConnection(t *testing.T) {
	m, _ := newTestManager(t, &fakeAPI{}, nil)

	if err := m.CheckConnection(context.Background()); err != nil {
		t.Errorf("CheckConnection: %v", err)
	}
}

// --- Consume Tests ---

func consumeAll(t *testing.T, m *Manager, count int, handle func(msg worker.Message) worker.Disposition) []string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ids []string
	handler := worker.HandlerFunc(func(_ context.Context, _ string, msg worker.Message) (worker.Disposition, error) {
		ids = append(ids, msg.MessageID())
		if len(ids) == count {
			cancel()
		}
		return handle(msg), nil
	})

	done := make(chan error, 1)
	go func() { done <- m.Consume(ctx, "emails", handler) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("consume did not stop")
	}
	return ids
}

func TestManager_Consume_SettlesDispositions(t *testing.T) {
	api := &fakeAPI{exists: true, batches: [][]types.Message{{
		rawMessage("ack", nil),
		rawMessage("drop", nil),
		rawMessage("requeue", nil),
		rawMessage("retain", nil),
	}}}
	m, _ := newTestManager(t, api, nil)

	ids := consumeAll(t, m, 4, func(msg worker.Message) worker.Disposition {
		switch msg.MessageID() {
		case "ack":
			return worker.Ack
		case "drop":
			return worker.Drop
		case "requeue":
			return worker.Requeue
		default:
			return worker.Retain
		}
	})

	if len(ids) != 4 {
		t.Fatalf("expected 4 messages handled, got %v", ids)
	}
	if strings.Join(api.deleted, ",") != "rh-ack,rh-drop" {
		t.Errorf("expected ack and drop deleted, got %v", api.deleted)
	}
}

func TestManager_Consume_SkipsDuplicates(t *testing.T) {
	api := &fakeAPI{exists: true, batches: [][]types.Message{
		{rawMessage("first", nil), rawMessage("dup", nil)},
		{rawMessage("last", nil)},
	}}
	m, _ := newTestManager(t, api, func(c *ManagerConfig) {
		c.Deduplicator = fakeChecker{duplicates: map[string]bool{"dup": true}}
	})

	ids := consumeAll(t, m, 2, func(worker.Message) worker.Disposition { return worker.Ack })

	if strings.Join(ids, ",") != "first,last" {
		t.Errorf("expected duplicate skipped, got %v", ids)
	}
	if strings.Join(api.deleted, ",") != "rh-first,rh-dup,rh-last" {
		t.Errorf("expected duplicate acknowledged, got %v", api.deleted)
	}
}

func TestManager_Consume_RetainedMessageRunsAgain(t *testing.T) {
	api := &fakeAPI{exists: true, batches: [][]types.Message{
		{rawMessage("m-1", nil)},
		{rawMessage("m-1", nil)},
	}}
	deduplicator := dedup.New(dedup.Config{
		Store:  dedup.NewMemoryStore(nil),
		Logger: slog.New(slog.DiscardHandler),
	})
	m, _ := newTestManager(t, api, func(c *ManagerConfig) { c.Deduplicator = deduplicator })

	var deliveries int
	ids := consumeAll(t, m, 2, func(worker.Message) worker.Disposition {
		deliveries++
		if deliveries == 1 {
			return worker.Retain
		}
		return worker.Ack
	})

	if strings.Join(ids, ",") != "m-1,m-1" {
		t.Errorf("expected redelivery handled, got %v", ids)
	}
	if strings.Join(api.deleted, ",") != "rh-m-1" {
		t.Errorf("expected single delete after second delivery, got %v", api.deleted)
	}
}

func TestManager_Consume_RestoresOffloadedPayload(t *testing.T) {
	key := "relay/emails/blob-1"
	payloads := &memoryPayloads{blobs: map[string][]byte{key: []byte(`{"job":"large"}`)}}
	api := &fakeAPI{exists: true, batches: [][]types.Message{{rawMessage("big", payloadAttributes(key))}}}
	m, _ := newTestManager(t, api, func(c *ManagerConfig) { c.Payloads = payloads })

	var body string
	consumeAll(t, m, 1, func(msg worker.Message) worker.Disposition {
		body = string(msg.Body())
		return worker.Ack
	})

	if body != `{"job":"large"}` {
		t.Errorf("expected restored body, got %q", body)
	}
	if len(payloads.deleted) != 1 || payloads.deleted[0] != key {
		t.Errorf("expected payload deleted after ack, got %v", payloads.deleted)
	}
}

func TestManager_Consume_MissingPayloadFails(t *testing.T) {
	payloads := &memoryPayloads{blobs: map[string][]byte{}}
	api := &fakeAPI{exists: true, batches: [][]types.Message{{rawMessage("big", payloadAttributes("relay/emails/gone"))}}}
	m, _ := newTestManager(t, api, func(c *ManagerConfig) { c.Payloads = payloads })

	err := m.Consume(context.Background(), "emails", worker.HandlerFunc(
		func(context.Context, string, worker.Message) (worker.Disposition, error) {
			t.Error("handler must not be called")
			return worker.Ack, nil
		},
	))

	if !errors.Is(err, ErrPayloadUnavailable) {
		t.Fatalf("expected ErrPayloadUnavailable, got %v", err)
	}
	var consumerErr *domain.ConsumerFailedError
	if !errors.As(err, &consumerErr) {
		t.Error("expected ConsumerFailedError")
	}
	if len(api.deleted) != 0 {
		t.Errorf("expected message left for redelivery, got %v", api.deleted)
	}
}

func TestManager_Consume_HandlerErrorStops(t *testing.T) {
	handlerErr := domain.ConsumerFailed(errors.New("broken"))
	api := &fakeAPI{exists: true, batches: [][]types.Message{{rawMessage("a", nil), rawMessage("b", nil)}}}
	m, _ := newTestManager(t, api, nil)

	calls := 0
	err := m.Consume(context.Background(), "emails", worker.HandlerFunc(
		func(context.Context, string, worker.Message) (worker.Disposition, error) {
			calls++
			return worker.Requeue, handlerErr
		},
	))

	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected consume to stop after first message, got %d calls", calls)
	}
	if len(api.deleted) != 0 {
		t.Errorf("expected requeued message left, got %v", api.deleted)
	}
}
