package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-password-vault/internal/domain"
)

// OTPRepo manages one-time codes. PK: email, SK: type.
// Put is an upsert, so issuing a new code replaces any unconsumed one.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Put(ctx context.Context, o *domain.OTP) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return unavailable("put otp", err)
	}
	return nil
}

func (r *OTPRepo) Get(ctx context.Context, email, otpType string) (*domain.OTP, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey(fieldEmail, email, fieldType, otpType),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get otp", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var o domain.OTP
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return &o, nil
}

// Consume deletes the code only when it matches and has not expired at nowUnix.
// The match and the delete are one conditional write, so a code succeeds at most once.
func (r *OTPRepo) Consume(ctx context.Context, email, otpType, code string, nowUnix int64) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldEmail, email, fieldType, otpType),
		ConditionExpression: aws.String("#c = :c AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{
			"#c": "code", "#exp": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":   str(code),
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(nowUnix, 10)},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("consume otp", err)
	}
	return true, nil
}

func (r *OTPRepo) Delete(ctx context.Context, email, otpType string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldEmail, email, fieldType, otpType),
	})
	if err != nil {
		return unavailable("delete otp", err)
	}
	return nil
}
