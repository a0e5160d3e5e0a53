package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-signup-api/internal/domain"
)

// TempStore stages verification sessions and registration drafts in a single
// TTL-enabled table keyed by record_key. Records past their logical expiry
// are reported as absent even before DynamoDB physically evicts them.
type TempStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewTempStore(client *dynamodb.Client, tableName string) *TempStore {
	return &TempStore{client: client, tableName: tableName}
}

func (s *TempStore) PutSession(ctx context.Context, v *domain.VerificationSession) error {
	return s.putRecord(ctx, "put session", v)
}

func (s *TempStore) PutDraft(ctx context.Context, d *domain.RegistrationDraft) error {
	return s.putRecord(ctx, "put draft", d)
}

func (s *TempStore) GetSession(ctx context.Context, key string) (*domain.VerificationSession, error) {
	item, err := s.getItem(ctx, key)
	if err != nil {
		return nil, err
	}
	var v domain.VerificationSession
	if err := attributevalue.UnmarshalMap(item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if v.Expired(time.Now()) {
		return nil, fmt.Errorf("session expired: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (s *TempStore) GetDraft(ctx context.Context, key string) (*domain.RegistrationDraft, error) {
	item, err := s.getItem(ctx, key)
	if err != nil {
		return nil, err
	}
	var d domain.RegistrationDraft
	if err := attributevalue.UnmarshalMap(item, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if d.Expired(time.Now()) {
		return nil, fmt.Errorf("draft expired: %w", domain.ErrNotFound)
	}
	return &d, nil
}

func (s *TempStore) DeleteSession(ctx context.Context, key string) error {
	return s.deleteRecord(ctx, "delete session", key)
}

func (s *TempStore) DeleteDraft(ctx context.Context, key string) error {
	return s.deleteRecord(ctx, "delete draft", key)
}

// ConsumeSessionAndDraft atomically removes a session and its linked draft
// and returns both. The reads run first; the removal is a single
// TransactWriteItems whose conditional deletes fail for all but one of any
// set of concurrent consumers, so a code is usable at most once.
func (s *TempStore) ConsumeSessionAndDraft(ctx context.Context, sessionKey string) (*domain.VerificationSession, *domain.RegistrationDraft, error) {
	sess, err := s.GetSession(ctx, sessionKey)
	if err != nil {
		return nil, nil, err
	}

	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:           aws.String(s.tableName),
			Key:                 strKey("record_key", sessionKey),
			ConditionExpression: aws.String("attribute_exists(record_key)"),
		},
	}}

	var draft *domain.RegistrationDraft
	if sess.LinkedDraftKey != "" {
		draft, err = s.GetDraft(ctx, sess.LinkedDraftKey)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:           aws.String(s.tableName),
				Key:                 strKey("record_key", sess.LinkedDraftKey),
				ConditionExpression: aws.String("attribute_exists(record_key)"),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		// A cancelled transaction means another consumer won the race and the
		// records are already gone.
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return nil, nil, fmt.Errorf("records already consumed: %w", domain.ErrNotFound)
		}
		return nil, nil, storeErr("consume session and draft", err)
	}
	return sess, draft, nil
}

func (s *TempStore) putRecord(ctx context.Context, op string, record interface{}) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (s *TempStore) getItem(ctx context.Context, key string) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey("record_key", key),
	})
	if err != nil {
		return nil, storeErr("get record", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("record not found: %w", domain.ErrNotFound)
	}
	return out.Item, nil
}

func (s *TempStore) deleteRecord(ctx context.Context, op, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey("record_key", key),
	})
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}
