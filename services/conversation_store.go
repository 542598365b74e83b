package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mslcrm/models"
)

const chatHistoryTable = "ChatHistory"

// ConversationStore はチャット履歴の永続化
type ConversationStore interface {
	Append(ctx context.Context, msg models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	ListAll(ctx context.Context) ([]models.Message, error)
}

type DynamoConversationStore struct {
	db *dynamodb.Client
}

func NewDynamoConversationStore(endpoint, region string) (*DynamoConversationStore, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy",
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %v", err)
	}

	store := &DynamoConversationStore{db: dynamodb.NewFromConfig(cfg)}
	store.ensureTableExists()
	return store, nil
}

func (s *DynamoConversationStore) ensureTableExists() {
	_, err := s.db.CreateTable(context.TODO(), &dynamodb.CreateTableInput{
		TableName: aws.String(chatHistoryTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("ConversationID"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("Timestamp"),
				AttributeType: types.ScalarAttributeTypeS, // 固定桁のISO8601形式で保存
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("ConversationID"),
				KeyType:       types.KeyTypeHash, // パーティションキー
			},
			{
				AttributeName: aws.String("Timestamp"),
				KeyType:       types.KeyTypeRange, // ソートキー
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		fmt.Printf("Table might already exist: %v\n", err)
	}
}

func (s *DynamoConversationStore) Append(ctx context.Context, msg models.Message) error {
	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(chatHistoryTable),
		Item: map[string]types.AttributeValue{
			"ID":             &types.AttributeValueMemberS{Value: msg.ID},
			"ConversationID": &types.AttributeValueMemberS{Value: msg.ConversationID},
			"Role":           &types.AttributeValueMemberS{Value: msg.Role},
			"Content":        &types.AttributeValueMemberS{Value: msg.Content},
			"Timestamp":      &types.AttributeValueMemberS{Value: FormatTimestamp(msg.Timestamp)},
		},
	})
	return err
}

// ListByConversation は指定した会話のメッセージを古い順に返す
func (s *DynamoConversationStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	result, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(chatHistoryTable),
		KeyConditionExpression: aws.String("ConversationID = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(true), // 古い順
	})
	if err != nil {
		return nil, err
	}

	return itemsToMessages(result.Items), nil
}

// ListAll は全会話のメッセージを時系列で返す（履歴一覧のグルーピング用）
func (s *DynamoConversationStore) ListAll(ctx context.Context) ([]models.Message, error) {
	messages := make([]models.Message, 0)

	paginator := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName: aws.String(chatHistoryTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %v", chatHistoryTable, err)
		}
		messages = append(messages, itemsToMessages(page.Items)...)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	return messages, nil
}

func itemsToMessages(items []map[string]types.AttributeValue) []models.Message {
	messages := make([]models.Message, 0, len(items))
	for _, item := range items {
		msg := models.Message{}
		if v, ok := item["ID"].(*types.AttributeValueMemberS); ok {
			msg.ID = v.Value
		}
		if v, ok := item["ConversationID"].(*types.AttributeValueMemberS); ok {
			msg.ConversationID = v.Value
		}
		if v, ok := item["Role"].(*types.AttributeValueMemberS); ok {
			msg.Role = v.Value
		}
		if v, ok := item["Content"].(*types.AttributeValueMemberS); ok {
			msg.Content = v.Value
		}
		if v, ok := item["Timestamp"].(*types.AttributeValueMemberS); ok {
			msg.Timestamp = ParseTimestamp(v.Value)
		}
		messages = append(messages, msg)
	}
	return messages
}
