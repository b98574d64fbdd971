package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/wa-storefront/internal/domain/cart"
)

// DynamoCartStore is the DynamoDB cart backend, selected with
// CART_BACKEND=dynamo for deployments without a relational store nearby.
type DynamoCartStore struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoCart is the table item: session ID as the hash key, cart as a JSON
// string.
type dynamoCart struct {
	SessionID string `dynamodbav:"session_id"`
	Data      string `dynamodbav:"data"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func NewDynamoCartStore(client *dynamodb.Client, tableName string) *DynamoCartStore {
	return &DynamoCartStore{client: client, tableName: tableName}
}

func (s *DynamoCartStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart %s: %w", sessionID, err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoCart
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart item: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal([]byte(item.Data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart %s: %w", sessionID, err)
	}
	return &c, nil
}

func (s *DynamoCartStore) Save(ctx context.Context, sessionID string, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart %s: %w", sessionID, err)
	}

	av, err := attributevalue.MarshalMap(dynamoCart{
		SessionID: sessionID,
		Data:      string(data),
		UpdatedAt: time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cart item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put cart %s: %w", sessionID, err)
	}
	return nil
}
