package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
)

// DynamoMaxTransactItems is the TransactWriteItems action limit.
const DynamoMaxTransactItems = 100

const dynamoKeyAttr = "id"

// DynamoAPI is the slice of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps each collection in its own table keyed by a string "id".
// Timestamps are stored as RFC3339 strings.
type DynamoStore struct {
	client DynamoAPI
	prefix string
	tables map[string]string
	now    Clock
}

type DynamoOption func(*DynamoStore)

// WithTablePrefix prepends prefix to every collection name.
func WithTablePrefix(prefix string) DynamoOption {
	return func(d *DynamoStore) { d.prefix = prefix }
}

// WithTable maps one collection to an explicit table name.
func WithTable(collection, table string) DynamoOption {
	return func(d *DynamoStore) { d.tables[collection] = table }
}

func WithDynamoClock(now Clock) DynamoOption {
	return func(d *DynamoStore) { d.now = now }
}

func NewDynamoStore(client DynamoAPI, opts ...DynamoOption) *DynamoStore {
	d := &DynamoStore{
		client: client,
		tables: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TableName resolves the table backing collection.
func (d *DynamoStore) TableName(collection string) string {
	if t, ok := d.tables[collection]; ok {
		return t
	}
	return d.prefix + collection
}

func (d *DynamoStore) MaxBatchSize() int { return DynamoMaxTransactItems }

func dynamoKey(id string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{dynamoKeyAttr: id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (d *DynamoStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	key, err := dynamoKey(id)
	if err != nil {
		return nil, false, err
	}
	table := d.TableName(collection)
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &table,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("dynamodb GetItem %s/%s: %w", table, id, classifyDynamo(err))
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	var doc Document
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, false, fmt.Errorf("unmarshal item: %w", err)
	}
	delete(doc, dynamoKeyAttr)
	return doc, true, nil
}

func (d *DynamoStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	table := d.TableName(collection)
	input := &dynamodb.ScanInput{
		TableName:                &table,
		ProjectionExpression:     aws.String("#id"),
		ExpressionAttributeNames: map[string]string{"#id": dynamoKeyAttr},
		ConsistentRead:           aws.Bool(true),
	}

	var ids []string
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s failed: %w", table, classifyDynamo(err))
		}
		for _, it := range page.Items {
			var row struct {
				ID string `dynamodbav:"id"`
			}
			if err := attributevalue.UnmarshalMap(it, &row); err != nil {
				return nil, fmt.Errorf("unmarshal id: %w", err)
			}
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

func (d *DynamoStore) CommitUpserts(ctx context.Context, ops []Upsert) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > DynamoMaxTransactItems {
		return apperrors.Wrapf(apperrors.ErrValidation, nil, "batch of %d exceeds %d items", len(ops), DynamoMaxTransactItems)
	}

	stamp := d.now().Format(time.RFC3339)
	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		data := resolveTimestamps(op.Data, stamp)
		var (
			item types.TransactWriteItem
			err  error
		)
		if op.Merge {
			item, err = d.updateItem(op.Collection, op.ID, data)
		} else {
			item, err = d.putItem(op.Collection, op.ID, data)
		}
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("dynamodb TransactWriteItems (%d upserts): %w", len(items), classifyDynamo(err))
	}
	return nil
}

func (d *DynamoStore) putItem(collection, id string, data Document) (types.TransactWriteItem, error) {
	doc := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	doc[dynamoKeyAttr] = id

	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{TableName: aws.String(d.TableName(collection)), Item: item},
	}, nil
}

// updateItem builds "SET #f0 = :v0, ..." over data in field-name order.
// Attribute names are always aliased since "name" is a reserved word.
func (d *DynamoStore) updateItem(collection, id string, data Document) (types.TransactWriteItem, error) {
	key, err := dynamoKey(id)
	if err != nil {
		return types.TransactWriteItem{}, err
	}

	fields := make([]string, 0, len(data))
	for k := range data {
		if k == dynamoKeyAttr {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)

	expr := "SET "
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	for i, f := range fields {
		np := fmt.Sprintf("#f%d", i)
		vp := fmt.Sprintf(":v%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += fmt.Sprintf("%s = %s", np, vp)
		av, err := attributevalue.Marshal(data[f])
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("marshal update value %s: %w", f, err)
		}
		names[np] = f
		values[vp] = av
	}

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(d.TableName(collection)),
			Key:                       key,
			UpdateExpression:          aws.String(expr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	}, nil
}

func (d *DynamoStore) CommitDeletes(ctx context.Context, refs []DocRef) error {
	if len(refs) == 0 {
		return nil
	}
	if len(refs) > DynamoMaxTransactItems {
		return apperrors.Wrapf(apperrors.ErrValidation, nil, "batch of %d exceeds %d items", len(refs), DynamoMaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(refs))
	for _, ref := range refs {
		key, err := dynamoKey(ref.ID)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{TableName: aws.String(d.TableName(ref.Collection)), Key: key},
		})
	}

	if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("dynamodb TransactWriteItems (%d deletes): %w", len(items), classifyDynamo(err))
	}
	return nil
}

var transientCancellationCodes = map[string]bool{
	"ThrottlingError":               true,
	"ProvisionedThroughputExceeded": true,
	"TransactionConflict":           true,
}

// classifyDynamo treats cancelled transactions as transient when any
// cancellation reason is a throttle or conflict.
func classifyDynamo(err error) error {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if r.Code != nil && transientCancellationCodes[*r.Code] {
				return apperrors.Wrap(apperrors.ErrTransientRemote, err)
			}
		}
		return apperrors.Wrap(apperrors.ErrPermanentRemote, err)
	}
	return Classify(err)
}
