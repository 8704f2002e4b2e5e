// Package dynamo records batch submissions and outcomes in a DynamoDB
// bookkeeping table, one entry per submitted batch.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// Ensure Ledger implements the driven port
var _ driven.Ledger = (*Ledger)(nil)

// DefaultTable is the ledger table used when none is configured.
const DefaultTable = "batchjob"

// API is the subset of the DynamoDB client the ledger depends on.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Ledger writes batch bookkeeping entries to DynamoDB.
type Ledger struct {
	client API
	table  string
}

// ledgerEntry is the persisted shape of a submission record.
type ledgerEntry struct {
	BatchID     string `dynamodbav:"batch_id"`
	Timestamp   string `dynamodbav:"timestamp"`
	TableName   string `dynamodbav:"table_name"`
	Status      string `dynamodbav:"status"`
	Model       string `dynamodbav:"model"`
	InputFileID string `dynamodbav:"input_file_id"`
	RecordCount int    `dynamodbav:"record_count"`
}

// finalEntry extends a submission record with its outcome, used when
// the entry has to be rewritten wholesale.
type finalEntry struct {
	ledgerEntry
	FinalStatus  string `dynamodbav:"final_status"`
	OutputFileID string `dynamodbav:"output_file_id"`
}

// New creates a ledger using the default AWS credential chain.
// An empty region defers to the environment and shared config files;
// an empty table selects DefaultTable.
func New(ctx context.Context, region, table string) (*Ledger, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return NewFromClient(dynamodb.NewFromConfig(cfg), table), nil
}

// NewFromClient creates a ledger over an existing client.
func NewFromClient(client API, table string) *Ledger {
	if table == "" {
		table = DefaultTable
	}

	return &Ledger{
		client: client,
		table:  table,
	}
}

// Record inserts a submission entry for a freshly created batch.
func (l *Ledger) Record(ctx context.Context, job domain.Job) error {
	entry := ledgerEntry{
		BatchID:     job.BatchID,
		Timestamp:   job.CreatedUTC,
		TableName:   job.Source,
		Status:      job.Status,
		Model:       job.Model,
		InputFileID: job.InputFileID,
		RecordCount: job.RecordCount,
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put ledger entry for %s: %w", job.BatchID, err)
	}

	logger.Info("Recorded batch %s in DynamoDB table %s", job.BatchID, l.table)
	return nil
}

// Finalise stamps a terminal status and output file onto the entry.
// Tables keyed on batch_id alone take the cheap update path; tables
// with a composite key reject that key, so the whole entry is
// rewritten instead.
func (l *Ledger) Finalise(ctx context.Context, job domain.Job) error {
	key := map[string]types.AttributeValue{
		"batch_id": &types.AttributeValueMemberS{Value: job.BatchID},
	}

	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(l.table),
		Key:              key,
		UpdateExpression: aws.String("SET final_status = :s, output_file_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: job.FinalStatus},
			":o": &types.AttributeValueMemberS{Value: job.OutputFileID},
		},
	})
	if err == nil {
		logger.Info("Updated batch %s in DynamoDB table %s", job.BatchID, l.table)
		return nil
	}

	entry := finalEntry{
		ledgerEntry: ledgerEntry{
			BatchID:     job.BatchID,
			Timestamp:   job.CreatedUTC,
			TableName:   job.Source,
			Status:      job.Status,
			Model:       job.Model,
			InputFileID: job.InputFileID,
			RecordCount: job.RecordCount,
		},
		FinalStatus:  job.FinalStatus,
		OutputFileID: job.OutputFileID,
	}

	item, merr := attributevalue.MarshalMap(entry)
	if merr != nil {
		return fmt.Errorf("marshal ledger entry: %w", merr)
	}

	if _, perr := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      item,
	}); perr != nil {
		return fmt.Errorf("update ledger entry for %s: %w", job.BatchID, perr)
	}

	logger.Info("Updated batch %s in DynamoDB table %s", job.BatchID, l.table)
	return nil
}
