package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dmelo/llm-gateway/internal/domain"
)

// SQSExporter decorates a Ledger, shipping every appended record to an SQS
// queue for downstream billing. Export is fire-and-forget: queue failures are
// logged and never affect the synchronous append or the caller's response.
type SQSExporter struct {
	inner    Ledger
	client   *sqs.Client
	queueURL string
	pending  chan domain.UsageRecord
}

func NewSQSExporter(ctx context.Context, inner Ledger, region, queueURL string) (*SQSExporter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	e := &SQSExporter{
		inner:    inner,
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		pending:  make(chan domain.UsageRecord, 1024),
	}

	go e.exportLoop(ctx)

	return e, nil
}

func (e *SQSExporter) Append(ctx context.Context, record domain.UsageRecord) error {
	if err := e.inner.Append(ctx, record); err != nil {
		return err
	}

	select {
	case e.pending <- record:
	default:
		slog.Warn("usage export queue full, dropping record", "record_id", record.ID)
	}

	return nil
}

func (e *SQSExporter) Aggregate(ctx context.Context, tenantID string, since time.Time) ([]domain.ProviderUsage, error) {
	return e.inner.Aggregate(ctx, tenantID, since)
}

func (e *SQSExporter) TotalCost(ctx context.Context, tenantID string, since time.Time) (float64, error) {
	return e.inner.TotalCost(ctx, tenantID, since)
}

func (e *SQSExporter) exportLoop(ctx context.Context) {
	for {
		select {
		case record := <-e.pending:
			e.send(ctx, record)
		case <-ctx.Done():
			return
		}
	}
}

func (e *SQSExporter) send(ctx context.Context, record domain.UsageRecord) {
	body, err := json.Marshal(record)
	if err != nil {
		slog.Error("marshal usage record for export", "error", err, "record_id", record.ID)
		return
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(e.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"TenantID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(record.TenantID),
			},
			"Provider": {
				DataType:    aws.String("String"),
				StringValue: aws.String(record.Provider),
			},
		},
	}

	if _, err := e.client.SendMessage(ctx, input); err != nil {
		slog.Warn("failed to export usage record", "error", err, "record_id", record.ID)
	}
}
