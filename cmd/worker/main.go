package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"redact-backend/internal/bootstrap"
	"redact-backend/internal/deadletter"
	"redact-backend/internal/queue"
	"redact-backend/internal/shared/config"
	"redact-backend/internal/shared/telemetry"
	"redact-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 300
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	if cfg.QueueURL == "" {
		telemetry.Error("worker.config_invalid", map[string]any{"error": "RA_SQS_QUEUE_URL is required"})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("RA_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("RA_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("RA_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		telemetry.Error("worker.aws_config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	w := &worker{
		client:    sqs.NewFromConfig(awsCfg),
		queueURL:  cfg.QueueURL,
		proc:      app.Processor,
		escalator: app.Escalator,
	}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue":       cfg.QueueURL,
		"concurrency": concurrency,
		"visibility":  visibilitySeconds,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type worker struct {
	client    sqsAPI
	queueURL  string
	proc      workerproc.Processor
	escalator *deadletter.Escalator
}

// handle deletes a message once it is processed, unrecoverable, or escalated.
// Transient failures are left on the queue for redelivery.
func (w *worker) handle(ctx context.Context, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.message.invalid", fields)
		w.drop(ctx, msg, deadletter.DeadLetter{MessageID: aws.ToString(msg.MessageId), Body: body, Error: err.Error()})
		return
	}
	if len(decoded) == 0 {
		telemetry.Info("worker.message.no_records", baseFields(msg, ""))
		w.delete(ctx, msg, "")
		return
	}

	requestID := decoded[0].RequestID
	telemetry.Info("worker.message.received", with(baseFields(msg, requestID), map[string]any{"records": len(decoded)}))

	err = workerproc.HandleMessage(workerproc.WithParsedMessages(ctx, decoded), w.proc, body)
	if err == nil {
		if w.delete(ctx, msg, requestID) {
			telemetry.Info("worker.message.completed", baseFields(msg, requestID))
		}
		return
	}

	fields := baseFields(msg, requestID)
	fields["error"] = err.Error()
	if workerproc.Unrecoverable(err) {
		telemetry.Error("worker.message.unrecoverable", fields)
		w.delete(ctx, msg, requestID)
		return
	}

	telemetry.Error("worker.message.failed", fields)

	count := receiveCount(msg)
	if !w.escalator.ShouldEscalate(count) {
		return
	}
	dl := deadletter.DeadLetter{MessageID: aws.ToString(msg.MessageId), Body: body, Error: err.Error(), Attempts: count}
	var procErr workerproc.ErrProcess
	if errors.As(err, &procErr) {
		dl.OwnerID = procErr.OwnerID
		dl.ObjectKey = procErr.ObjectKey
	}
	if _, err := w.escalator.Escalate(ctx, dl); err != nil {
		fields["escalate_error"] = err.Error()
		telemetry.Error("worker.message.escalate_failed", fields)
		return
	}
	w.delete(ctx, msg, requestID)
}

// drop records an unparseable message when an escalator is configured, then
// deletes it.
func (w *worker) drop(ctx context.Context, msg sqstypes.Message, dl deadletter.DeadLetter) {
	if w.escalator != nil {
		dl.Attempts = receiveCount(msg)
		if _, err := w.escalator.Escalate(ctx, dl); err != nil {
			telemetry.Error("worker.message.escalate_failed", with(baseFields(msg, ""), map[string]any{"error": err.Error()}))
			return
		}
	}
	w.delete(ctx, msg, "")
}

func (w *worker) delete(ctx context.Context, msg sqstypes.Message, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.message.delete_failed", with(baseFields(msg, requestID), map[string]any{"error": "missing receipt handle"}))
		return false
	}
	if _, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("worker.message.delete_failed", with(baseFields(msg, requestID), map[string]any{"error": err.Error()}))
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func with(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
