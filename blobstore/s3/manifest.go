package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentCommit is returned when another writer committed the same
// checkpoint version first.
var ErrConcurrentCommit = errors.New("concurrent checkpoint commit detected")

// ErrNoCheckpoint is returned when a model has no committed checkpoint.
var ErrNoCheckpoint = errors.New("no committed checkpoint")

// DDBClient is the subset of DynamoDB operations the manifest store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ManifestStore records which checkpoint artifact is current for each
// model. S3 offers no compare-and-swap, so the "latest" pointer lives in a
// DynamoDB table with conditional writes; multiple trainers can commit
// checkpoints for the same model without losing updates.
//
// Table schema:
//   - Partition key: model_id (string)
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name codebook-checkpoints \
//	  --attribute-definitions AttributeName=model_id,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=model_id,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type ManifestStore struct {
	client    DDBClient
	tableName string
}

// NewManifestStore creates a manifest store over the given table.
func NewManifestStore(client DDBClient, tableName string) *ManifestStore {
	return &ManifestStore{
		client:    client,
		tableName: tableName,
	}
}

// Commit records artifactName as the next checkpoint version for modelID
// and returns the assigned version. A losing race returns
// ErrConcurrentCommit; the caller may retry to obtain a fresh version.
func (m *ManifestStore) Commit(ctx context.Context, modelID, artifactName string) (uint64, error) {
	latest, _, err := m.latest(ctx, modelID)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return 0, err
	}
	version := latest + 1

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item: map[string]types.AttributeValue{
			"model_id": &types.AttributeValueMemberS{Value: modelID},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"artifact": &types.AttributeValueMemberS{Value: artifactName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, fmt.Errorf("%w: version %d already committed", ErrConcurrentCommit, version)
		}
		return 0, err
	}

	return version, nil
}

// Latest returns the artifact name and version of the newest committed
// checkpoint for modelID.
func (m *ManifestStore) Latest(ctx context.Context, modelID string) (string, uint64, error) {
	version, artifact, err := m.latest(ctx, modelID)
	if err != nil {
		return "", 0, err
	}
	return artifact, version, nil
}

func (m *ManifestStore) latest(ctx context.Context, modelID string) (uint64, string, error) {
	resp, err := m.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(m.tableName),
		KeyConditionExpression: aws.String("model_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: modelID},
		},
		ScanIndexForward: aws.Bool(false), // newest first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", err
	}
	if len(resp.Items) == 0 {
		return 0, "", ErrNoCheckpoint
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("manifest item missing version attribute")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", err
	}

	artifactAttr, ok := item["artifact"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("manifest item missing artifact attribute")
	}

	return version, artifactAttr.Value, nil
}
