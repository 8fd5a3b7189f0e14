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

// maxRecordRetries bounds re-reads when an embedded data record moves between read and write.
const maxRecordRetries = 3

// AccountRepo provides typed DynamoDB operations for the users table.
type AccountRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAccountRepo(client *dynamodb.Client, tableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName}
}

// Put inserts a new account. It never overwrites an existing user_id.
func (r *AccountRepo) Put(ctx context.Context, a *domain.Account) error {
	item, err := accountItem(a)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldUserID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("account %s already exists: %w", a.UserID, domain.ErrConflict)
	}
	if err != nil {
		return unavailable("put account", err)
	}
	return nil
}

// accountItem marshals a for PutItem. An account without data records has no
// data attribute at all; a NULL there would break list_append in AppendData.
func accountItem(a *domain.Account) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}
	if v, ok := item[fieldData]; ok {
		if _, isNull := v.(*types.AttributeValueMemberNULL); isNull {
			delete(item, fieldData)
		}
	}
	return item, nil
}

func (r *AccountRepo) Get(ctx context.Context, userID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get account", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.queryGSI(ctx, indexUsername, fieldUsername, username)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

// Update applies a partial SET to an existing account and bumps updated_at.
func (r *AccountRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = now()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return unavailable("update account", err)
	}
	return nil
}

func (r *AccountRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return unavailable("delete account", err)
	}
	return nil
}

// ScanAll returns every account. Intended for admin tooling only.
func (r *AccountRepo) ScanAll(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("scan accounts", err)
		}
		var batch []domain.Account
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		accounts = append(accounts, batch...)
	}
	return accounts, nil
}

// AppendData adds a record to the account's embedded data list.
func (r *AccountRepo) AppendData(ctx context.Context, userID string, rec domain.DataRecord) error {
	av, err := attributevalue.Marshal([]domain.DataRecord{rec})
	if err != nil {
		return fmt.Errorf("marshal data record: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("SET #d = list_append(if_not_exists(#d, :empty), :rec), #ua = :now"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#d": fieldData, "#ua": fieldUpdatedAt, "#pk": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":rec":   av,
			":now":   str(now()),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return unavailable("append data record", err)
	}
	return nil
}

// UpdateData replaces the info of one embedded record. Reports false when no record matches.
func (r *AccountRepo) UpdateData(ctx context.Context, userID, recordID, info string) (bool, error) {
	return r.mutateRecord(ctx, userID, recordID, func(idx int) (string, map[string]types.AttributeValue) {
		expr := fmt.Sprintf("SET #d[%d].#info = :info, #d[%d].#ua = :now, #ua = :now", idx, idx)
		return expr, map[string]types.AttributeValue{":info": str(info)}
	})
}

// RemoveData deletes one embedded record. Reports false when no record matches.
func (r *AccountRepo) RemoveData(ctx context.Context, userID, recordID string) (bool, error) {
	return r.mutateRecord(ctx, userID, recordID, func(idx int) (string, map[string]types.AttributeValue) {
		return fmt.Sprintf("REMOVE #d[%d] SET #ua = :now", idx), map[string]types.AttributeValue{}
	})
}

// mutateRecord locates recordID by position and writes conditionally on the
// record still sitting at that index, re-reading when a concurrent change moved it.
func (r *AccountRepo) mutateRecord(
	ctx context.Context,
	userID, recordID string,
	build func(idx int) (string, map[string]types.AttributeValue),
) (bool, error) {
	for attempt := 0; attempt < maxRecordRetries; attempt++ {
		a, err := r.Get(ctx, userID)
		if err != nil {
			return false, err
		}
		idx := indexOfRecord(a.Data, recordID)
		if idx < 0 {
			return false, nil
		}
		expr, values := build(idx)
		values[":rid"] = str(recordID)
		values[":now"] = str(now())
		names := map[string]string{"#d": fieldData, "#ua": fieldUpdatedAt, "#rid": "record_id"}
		if _, ok := values[":info"]; ok {
			names["#info"] = "info"
		}
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldUserID, userID),
			UpdateExpression:          aws.String(expr),
			ConditionExpression:       aws.String(fmt.Sprintf("#d[%d].#rid = :rid", idx)),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return false, unavailable("update data record", err)
		}
		return true, nil
	}
	return false, fmt.Errorf("data record %s kept moving: %w", recordID, domain.ErrConflict)
}

func indexOfRecord(records []domain.DataRecord, recordID string) int {
	for i, rec := range records {
		if rec.RecordID == recordID {
			return i
		}
	}
	return -1
}

func (r *AccountRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": str(value)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, unavailable("query "+index, err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}
