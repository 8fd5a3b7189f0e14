package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-password-vault/internal/domain"
)

// TableAdmin exposes collection-level operations for admin tooling.
// It only touches the tables it was constructed with.
type TableAdmin struct {
	client *dynamodb.Client
	owned  []string
}

func NewTableAdmin(client *dynamodb.Client, owned []string) *TableAdmin {
	return &TableAdmin{client: client, owned: owned}
}

// ListTables returns the owned tables that currently exist.
func (t *TableAdmin) ListTables(ctx context.Context) ([]string, error) {
	var existing []string
	p := dynamodb.NewListTablesPaginator(t.client, &dynamodb.ListTablesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("list tables", err)
		}
		for _, name := range page.TableNames {
			if slices.Contains(t.owned, name) {
				existing = append(existing, name)
			}
		}
	}
	slices.Sort(existing)
	return existing, nil
}

// ExportTable scans a table into plain maps suitable for JSON encoding.
func (t *TableAdmin) ExportTable(ctx context.Context, name string) ([]map[string]interface{}, error) {
	if err := t.checkOwned(name); err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	p := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{TableName: aws.String(name)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("scan "+name, err)
		}
		var batch []map[string]interface{}
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}

// DropTable deletes a table. A missing table is reported as ErrNotFound.
func (t *TableAdmin) DropTable(ctx context.Context, name string) error {
	if err := t.checkOwned(name); err != nil {
		return err
	}
	_, err := t.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("table %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return unavailable("drop table "+name, err)
	}
	return nil
}

func (t *TableAdmin) checkOwned(name string) error {
	if !slices.Contains(t.owned, name) {
		return fmt.Errorf("unknown collection %q: %w", name, domain.ErrBadRequest)
	}
	return nil
}
