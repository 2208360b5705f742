// Package dynamo implements the checksum store on Amazon DynamoDB.
//
// Table schema:
//   - Partition key: session (string) - the session partition key
//   - Sort key: path_checksum (string) - lowercased canonical path plus checksum
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name scrubgo-records \
//	  --attribute-definitions AttributeName=session,AttributeType=S AttributeName=path_checksum,AttributeType=S \
//	  --key-schema AttributeName=session,KeyType=HASH AttributeName=path_checksum,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
// Add uses a conditional put so re-registering an identical record is a
// no-op server side, matching the append-only contract without a read
// round-trip. GetMatches queries one partition and paginates.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
)

// Client is the interface for DynamoDB operations.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store is a DynamoDB-backed checksum store.
type Store struct {
	client    Client
	tableName string
}

// New creates a Store writing to tableName through client.
func New(client Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Add upserts f into its session partition.
func (s *Store) Add(ctx context.Context, f *record.File) error {
	entry := store.NewEntry(f)

	item := map[string]types.AttributeValue{
		"session":       &types.AttributeValueMemberS{Value: store.PartitionKey(f)},
		"path_checksum": &types.AttributeValueMemberS{Value: entry.ID()},
		"path":          &types.AttributeValueMemberS{Value: entry.Path},
	}
	if entry.Checksum != "" {
		item["checksum"] = &types.AttributeValueMemberS{Value: entry.Checksum}
	}
	if entry.Size != nil {
		item["size"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*entry.Size, 10)}
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(path_checksum)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			// Identical record already registered.
			return nil
		}
		return fmt.Errorf("%w: put item: %v", store.ErrUnavailable, err)
	}

	return nil
}

// GetMatches returns stored records classifying into kinds against f.
func (s *Store) GetMatches(ctx context.Context, f *record.File, kinds ...record.MatchKind) ([]*record.File, error) {
	var matches []*record.File

	var startKey map[string]types.AttributeValue

	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("#s = :session"),
			ExpressionAttributeNames: map[string]string{
				"#s": "session",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":session": &types.AttributeValueMemberS{Value: store.PartitionKey(f)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: query partition: %v", store.ErrUnavailable, err)
		}

		for _, item := range resp.Items {
			e, err := itemEntry(item)
			if err != nil {
				continue
			}
			r, err := e.Record()
			if err != nil {
				continue
			}
			if store.MatchesFilter(record.Classify(f, r), kinds) {
				matches = append(matches, r)
			}
		}

		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	return matches, nil
}

// Close is a no-op; the SDK client has no per-store state.
func (s *Store) Close() error { return nil }

// itemEntry converts a DynamoDB item into a persisted entry.
func itemEntry(item map[string]types.AttributeValue) (store.Entry, error) {
	var e store.Entry

	pathAttr, ok := item["path"].(*types.AttributeValueMemberS)
	if !ok {
		return e, errors.New("invalid path attribute")
	}
	e.Path = pathAttr.Value

	if csAttr, ok := item["checksum"].(*types.AttributeValueMemberS); ok {
		e.Checksum = csAttr.Value
	}
	if sizeAttr, ok := item["size"].(*types.AttributeValueMemberN); ok {
		size, err := strconv.ParseInt(sizeAttr.Value, 10, 64)
		if err != nil {
			return e, fmt.Errorf("failed to parse size: %w", err)
		}
		e.Size = &size
	}

	return e, nil
}
