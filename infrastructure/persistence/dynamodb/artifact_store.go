// Package dynamodb stores clustering artifacts in a DynamoDB table for
// serverless deployments.
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// API is the subset of *dynamodb.Client used by ArtifactStore.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// artifactItem is the table layout. One item per selection key.
type artifactItem struct {
	PK        string `dynamodbav:"PK"` // ARTIFACT#<selection key>
	SK        string `dynamodbav:"SK"` // CURRENT
	Payload   []byte `dynamodbav:"Payload"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

const currentSK = "CURRENT"

// ArtifactStore implements ports.ArtifactStore on DynamoDB.
type ArtifactStore struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewArtifactStore creates a new artifact store
func NewArtifactStore(client API, tableName string, logger *zap.Logger) *ArtifactStore {
	return &ArtifactStore{client: client, tableName: tableName, logger: logger, now: time.Now}
}

func partitionKey(selectionKey string) string {
	return "ARTIFACT#" + selectionKey
}

// Put replaces the artifact stored under key with an unconditional PutItem.
func (s *ArtifactStore) Put(ctx context.Context, key string, payload []byte) error {
	item, err := attributevalue.MarshalMap(artifactItem{
		PK:        partitionKey(key),
		SK:        currentSK,
		Payload:   payload,
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return pkgerrors.NewArtifactPersistenceError("write", fmt.Errorf("marshal item: %w", err))
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		s.logger.Error("Failed to put artifact",
			zap.String("selection_key", key),
			zap.Error(err),
		)
		return pkgerrors.NewArtifactPersistenceError("write", err)
	}
	return nil
}

// Get reads the artifact with a strongly consistent read so that a Get
// directly after Put observes the overwrite.
func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: partitionKey(key)},
			"SK": &types.AttributeValueMemberS{Value: currentSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewArtifactPersistenceError("read", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("artifact")
	}

	var item artifactItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewArtifactPersistenceError("read", fmt.Errorf("unmarshal item: %w", err))
	}
	return item.Payload, nil
}

var _ ports.ArtifactStore = (*ArtifactStore)(nil)
