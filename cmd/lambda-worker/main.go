package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"redact-backend/internal/bootstrap"
	"redact-backend/internal/deadletter"
	"redact-backend/internal/shared/config"
	"redact-backend/internal/shared/telemetry"
	"redact-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, app.Processor, app.Escalator, event), nil
}

// handleBatch reports only transient failures back to SQS. Unrecoverable
// records are acknowledged; records past their receive budget are escalated.
func handleBatch(ctx context.Context, proc workerproc.Processor, esc *deadletter.Escalator, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		fields := map[string]any{"sqs_message_id": record.MessageId}

		err := workerproc.HandleMessage(ctx, proc, record.Body)
		if err == nil {
			continue
		}
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("lambda_worker.message.unrecoverable", fields)
			continue
		}

		telemetry.Error("lambda_worker.message.failed", fields)

		count, _ := strconv.Atoi(record.Attributes["ApproximateReceiveCount"])
		if esc.ShouldEscalate(count) {
			dl := deadletter.DeadLetter{MessageID: record.MessageId, Body: record.Body, Error: err.Error(), Attempts: count}
			if procErr, ok := err.(workerproc.ErrProcess); ok {
				dl.OwnerID = procErr.OwnerID
				dl.ObjectKey = procErr.ObjectKey
			}
			if _, escErr := esc.Escalate(ctx, dl); escErr == nil {
				continue
			}
		}
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
