package dynamo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/scrubgo/record"
)

// TestStore_Integration runs against a real DynamoDB table. Set
// SCRUBGO_DYNAMODB_TABLE to an existing table created with the schema in the
// package docs; skipped otherwise.
//
// Each run works in a fresh session partition (timestamped session id), so
// runs never observe each other's records.
func TestStore_Integration(t *testing.T) {
	tableName := os.Getenv("SCRUBGO_DYNAMODB_TABLE")
	if tableName == "" {
		t.Skip("SCRUBGO_DYNAMODB_TABLE not set")
	}

	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	s := New(dynamodb.NewFromConfig(cfg), tableName)

	session := fmt.Sprintf("%d_123456_20240101", time.Now().Unix())

	original, err := record.New("/acq/"+session+"/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)
	backup, err := record.New("/archive/"+session+"/rec.npx2",
		record.WithSize(2048), record.WithChecksum("CBF43926"))
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, original))
	require.NoError(t, s.Add(ctx, original), "re-adding is a no-op")
	require.NoError(t, s.Add(ctx, backup))

	matches, err := s.GetMatches(ctx, original, record.Self)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	matches, err = s.GetMatches(ctx, original, record.ValidCopySameName)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, backup.Path(), matches[0].Path())
}
