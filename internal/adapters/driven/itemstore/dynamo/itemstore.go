package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
)

// Ensure ItemStore implements the driven port
var _ driven.ItemStore = (*ItemStore)(nil)

// API is the subset of the DynamoDB client the store depends on.
type API interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// ItemStore reads source records from DynamoDB tables.
type ItemStore struct {
	client  API
	limiter *rate.Limiter
}

// New creates an item store using the default AWS credential chain.
// An empty region defers to the environment and shared config files.
func New(ctx context.Context, region string, scanRPS float64) (*ItemStore, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return NewFromClient(dynamodb.NewFromConfig(cfg), scanRPS), nil
}

// NewFromClient creates an item store over an existing client.
// A scanRPS of zero disables throttling.
func NewFromClient(client API, scanRPS float64) *ItemStore {
	var limiter *rate.Limiter
	if scanRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(scanRPS), 1)
	}

	return &ItemStore{
		client:  client,
		limiter: limiter,
	}
}

// ScanPage fetches one page of items from the given table. An empty
// cursor starts a new scan; an empty next cursor means the table is
// exhausted.
func (s *ItemStore) ScanPage(ctx context.Context, table, cursor string) ([]map[string]any, string, error) {
	startKey, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}

	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(table),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		var missing *types.ResourceNotFoundException
		if errors.As(err, &missing) {
			return nil, "", fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("scan %s: %w", table, err)
	}

	items := make([]map[string]any, 0, len(out.Items))
	for _, item := range out.Items {
		items = append(items, attrsToMap(item))
	}

	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", fmt.Errorf("encode scan cursor for %s: %w", table, err)
	}

	return items, next, nil
}

// ListTables returns the names of all tables visible to the caller.
func (s *ItemStore) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	var start *string

	for {
		out, err := s.client.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: start,
		})
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		start = out.LastEvaluatedTableName
	}

	return names, nil
}
