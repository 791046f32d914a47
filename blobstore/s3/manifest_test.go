package s3

import (
	"context"
	"sort"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB implements DDBClient in memory with conditional-put semantics.
type fakeDDB struct {
	items map[string]map[uint64]string // model_id -> version -> artifact

	// staleReads makes Query pretend the table is empty, simulating a
	// reader racing against a concurrent committer.
	staleReads bool
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[uint64]string)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	modelID := params.Item["model_id"].(*types.AttributeValueMemberS).Value
	version, _ := strconv.ParseUint(params.Item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
	artifact := params.Item["artifact"].(*types.AttributeValueMemberS).Value

	if f.items[modelID] == nil {
		f.items[modelID] = make(map[uint64]string)
	}
	if _, exists := f.items[modelID][version]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[modelID][version] = artifact
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.staleReads {
		return &dynamodb.QueryOutput{}, nil
	}
	modelID := params.ExpressionAttributeValues[":id"].(*types.AttributeValueMemberS).Value

	versions := make([]uint64, 0, len(f.items[modelID]))
	for v := range f.items[modelID] {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	out := &dynamodb.QueryOutput{}
	for _, v := range versions {
		out.Items = append(out.Items, map[string]types.AttributeValue{
			"model_id": &types.AttributeValueMemberS{Value: modelID},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)},
			"artifact": &types.AttributeValueMemberS{Value: f.items[modelID][v]},
		})
		if params.Limit != nil && len(out.Items) >= int(*params.Limit) {
			break
		}
	}
	return out, nil
}

func TestManifestStoreCommitAndLatest(t *testing.T) {
	ctx := context.Background()
	store := NewManifestStore(newFakeDDB(), "checkpoints")

	_, _, err := store.Latest(ctx, "bert-base")
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	v1, err := store.Commit(ctx, "bert-base", "bert-base/ckpt-0001")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)

	v2, err := store.Commit(ctx, "bert-base", "bert-base/ckpt-0002")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v2)

	artifact, version, err := store.Latest(ctx, "bert-base")
	require.NoError(t, err)
	assert.Equal(t, "bert-base/ckpt-0002", artifact)
	assert.Equal(t, uint64(2), version)
}

func TestManifestStoreModelsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewManifestStore(newFakeDDB(), "checkpoints")

	_, err := store.Commit(ctx, "model-a", "a/ckpt")
	require.NoError(t, err)

	_, _, err = store.Latest(ctx, "model-b")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestManifestStoreConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDDB()
	store := NewManifestStore(fake, "checkpoints")

	// A racing writer committed version 1 already; our reader sees a
	// stale (empty) view and tries to claim version 1 too.
	_, err := store.Commit(ctx, "model", "model/theirs")
	require.NoError(t, err)

	fake.staleReads = true
	_, err = store.Commit(ctx, "model", "model/ours")
	assert.ErrorIs(t, err, ErrConcurrentCommit)
}
