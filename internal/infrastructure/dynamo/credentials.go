package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-password-vault/internal/domain"
)

// batchWriteLimit is DynamoDB's per-call cap for BatchWriteItem.
const batchWriteLimit = 25

// CredentialRepo stores website credentials. PK: user_id, SK: credential_id.
type CredentialRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCredentialRepo(client *dynamodb.Client, tableName string) *CredentialRepo {
	return &CredentialRepo{client: client, tableName: tableName}
}

func (r *CredentialRepo) Put(ctx context.Context, c *domain.Credential) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return unavailable("put credential", err)
	}
	return nil
}

// ListByUser returns every credential in the user's partition.
func (r *CredentialRepo) ListByUser(ctx context.Context, userID string) ([]domain.Credential, error) {
	var creds []domain.Credential
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#pk = :uid"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": str(userID)},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("list credentials", err)
		}
		var batch []domain.Credential
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal credentials: %w", err)
		}
		creds = append(creds, batch...)
	}
	return creds, nil
}

// UpdateEntry overwrites login_entries[index] only while that entry still carries
// oldUsername. Reports false when the guard fails or the credential is gone.
func (r *CredentialRepo) UpdateEntry(ctx context.Context, userID, credentialID string, index int, oldUsername string, e domain.LoginEntry) (bool, error) {
	av, err := attributevalue.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshal login entry: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldUserID, userID, fieldCredentialID, credentialID),
		UpdateExpression:    aws.String(fmt.Sprintf("SET #le[%d] = :e, #ua = :now", index)),
		ConditionExpression: aws.String(fmt.Sprintf("#le[%d].#un = :old", index)),
		ExpressionAttributeNames: map[string]string{
			"#le": fieldLoginEntries, "#ua": fieldUpdatedAt, "#un": fieldUsername,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":   av,
			":now": str(now()),
			":old": str(oldUsername),
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("update login entry", err)
	}
	return true, nil
}

// Delete removes one credential. Reports whether an item was actually deleted.
func (r *CredentialRepo) Delete(ctx context.Context, userID, credentialID string) (bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          compositeKey(fieldUserID, userID, fieldCredentialID, credentialID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, unavailable("delete credential", err)
	}
	return len(out.Attributes) > 0, nil
}

// DeleteAllByUser removes every credential owned by userID and returns the count.
func (r *CredentialRepo) DeleteAllByUser(ctx context.Context, userID string) (int, error) {
	creds, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	reqs := make([]types.WriteRequest, 0, len(creds))
	for _, c := range creds {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: compositeKey(fieldUserID, c.UserID, fieldCredentialID, c.CredentialID),
		}})
	}
	if err := batchWrite(ctx, r.client, r.tableName, reqs); err != nil {
		return 0, err
	}
	return len(creds), nil
}

// batchWrite sends reqs in chunks and resubmits unprocessed items.
func batchWrite(ctx context.Context, client *dynamodb.Client, table string, reqs []types.WriteRequest) error {
	for start := 0; start < len(reqs); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(reqs))
		pending := map[string][]types.WriteRequest{table: reqs[start:end]}
		for len(pending[table]) > 0 {
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return unavailable("batch write "+table, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}
