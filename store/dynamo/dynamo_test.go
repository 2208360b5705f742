package dynamo

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/scrubgo/record"
	"github.com/hupe1980/scrubgo/store"
	"github.com/hupe1980/scrubgo/store/storetest"
)

// mockClient is an in-memory DynamoDB mock honoring the conditional put and
// query pagination the store relies on.
type mockClient struct {
	mu       sync.RWMutex
	items    map[string]map[string]types.AttributeValue // session|sortKey -> item
	pageSize int                                        // 0 means unpaginated

	putCalls   int
	queryCalls int
}

func newMockClient() *mockClient {
	return &mockClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *mockClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++

	session := params.Item["session"].(*types.AttributeValueMemberS).Value
	sortKey := params.Item["path_checksum"].(*types.AttributeValueMemberS).Value
	key := session + "|" + sortKey

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(path_checksum)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item

	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.queryCalls++

	session := params.ExpressionAttributeValues[":session"].(*types.AttributeValueMemberS).Value

	var keys []string
	for key, item := range m.items {
		if item["session"].(*types.AttributeValueMemberS).Value == session {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		after := params.ExclusiveStartKey["path_checksum"].(*types.AttributeValueMemberS).Value
		for i, key := range keys {
			if m.items[key]["path_checksum"].(*types.AttributeValueMemberS).Value == after {
				start = i + 1
				break
			}
		}
	}

	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	out := &dynamodb.QueryOutput{}
	for _, key := range keys[start:end] {
		out.Items = append(out.Items, m.items[key])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"session":       m.items[keys[end-1]]["session"],
			"path_checksum": m.items[keys[end-1]]["path_checksum"],
		}
	}

	return out, nil
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(newMockClient(), "scrubgo-records")
	})
}

func TestStore_AddConditionalCheckIsNoop(t *testing.T) {
	client := newMockClient()
	s := New(client, "scrubgo-records")
	ctx := context.Background()

	f, err := record.New("/acq/1234567890_123456_20240101/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, f))
	require.NoError(t, s.Add(ctx, f))

	// Second put hits the condition, no read round-trip happens.
	assert.Equal(t, 2, client.putCalls)
	assert.Equal(t, 0, client.queryCalls)
	assert.Len(t, client.items, 1)
}

func TestStore_GetMatchesPaginates(t *testing.T) {
	client := newMockClient()
	client.pageSize = 2
	s := New(client, "scrubgo-records")
	ctx := context.Background()

	original, err := record.New("/acq/1234567890_123456_20240101/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	copies := []string{
		"/backup1/1234567890_123456_20240101/rec.npx2",
		"/backup2/1234567890_123456_20240101/rec.npx2",
		"/backup3/1234567890_123456_20240101/rec.npx2",
		"/backup4/1234567890_123456_20240101/rec.npx2",
		"/backup5/1234567890_123456_20240101/rec.npx2",
	}
	for _, p := range copies {
		f, err := record.New(p, record.WithSize(2048), record.WithChecksum("CBF43926"))
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, f))
	}

	matches, err := s.GetMatches(ctx, original, record.ValidCopySameName)
	require.NoError(t, err)
	assert.Len(t, matches, len(copies))
	assert.Greater(t, client.queryCalls, 1)
}
