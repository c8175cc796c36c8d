package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-paystack-orderflow/internal/aws"
)

// Store encapsulates operations on the orders table.
type Store struct {
	client         aws.DynamoDBAPI
	tableName      string
	referenceIndex string // GSI with payment_reference as partition key
	nowFunc        func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, referenceIndex string) *Store {
	return &Store{
		client:         client,
		tableName:      tableName,
		referenceIndex: referenceIndex,
		nowFunc:        time.Now,
	}
}

// Create persists a new order. It fails with ErrAlreadyExists if the order id is taken.
func (s *Store) Create(ctx context.Context, order Order) error {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// FindByReference resolves the single order carrying reference through the
// reference index. Zero matches is ErrNotFound, more than one is
// ErrDuplicateReference.
func (s *Store) FindByReference(ctx context.Context, reference string) (*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.referenceIndex,
		KeyConditionExpression: awsString("payment_reference = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": &types.AttributeValueMemberS{Value: reference},
		},
		Limit: awsInt32(2),
	})
	if err != nil {
		return nil, fmt.Errorf("query reference index: %w", err)
	}
	switch len(out.Items) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		return nil, ErrDuplicateReference
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// AttachReference stores the payment reference on an order that is still
// pending payment. A later initialization replaces an earlier reference.
// Returns ErrStatusMismatch if the order is missing or no longer pending.
func (s *Store) AttachReference(ctx context.Context, orderID, reference string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(orderID),
		UpdateExpression:         awsString("SET payment_reference = :ref, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(order_id) AND #ps = :expected"),
		ExpressionAttributeNames: map[string]string{"#ps": "payment_status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref":      &types.AttributeValueMemberS{Value: reference},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":expected": &types.AttributeValueMemberS{Value: string(PaymentPending)},
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionalFailure(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item (attach reference): %w", err)
	}
	return nil
}

// UpdatePaymentStatus conditionally moves payment_status from expected to next
// and records the confirmed reference in the same write. When next is paid,
// paid_at is set to at. Returns nil on success, ErrStatusMismatch if the
// condition failed, which callers treat as "someone else already did it".
func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID string, expected, next PaymentStatus, reference string, at time.Time) error {
	now := s.nowFunc()
	updateExpr := "SET #ps = :new, payment_reference = :ref, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(next)},
		":ref":      &types.AttributeValueMemberS{Value: reference},
		":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
	}
	if next == PaymentPaid {
		updateExpr += ", paid_at = :pa"
		values[":pa"] = &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)}
	}

	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("attribute_exists(order_id) AND #ps = :expected"),
		ExpressionAttributeNames:  map[string]string{"#ps": "payment_status"},
		ExpressionAttributeValues: values,
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalFailure(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func isConditionalFailure(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
func awsInt32(n int32) *int32    { return &n }
