package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
)

type mockDynamo struct {
	items     map[string]map[string]types.AttributeValue
	scanPages [][]map[string]types.AttributeValue
	scanCalls int
	transacts []*dynamodb.TransactWriteItemsInput
	txErr     error
}

func (m *mockDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	var key struct {
		ID string `dynamodbav:"id"`
	}
	if err := attributevalue.UnmarshalMap(in.Key, &key); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: m.items[*in.TableName+"/"+key.ID]}, nil
}

func (m *mockDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	page := m.scanPages[m.scanCalls]
	m.scanCalls++
	out := &dynamodb.ScanOutput{Items: page}
	if m.scanCalls < len(m.scanPages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "cursor"}}
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.transacts = append(m.transacts, in)
	if m.txErr != nil {
		return nil, m.txErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func idItem(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func TestDynamoStore_Get(t *testing.T) {
	item, err := attributevalue.MarshalMap(map[string]interface{}{
		"id": "b1", "name": "Acme", "isActive": true, "price": 12.5, "keywords": []string{"a"},
	})
	require.NoError(t, err)
	api := &mockDynamo{items: map[string]map[string]types.AttributeValue{"seed_brands/b1": item}}
	s := NewDynamoStore(api, WithTablePrefix("seed_"))

	doc, ok, err := s.Get(context.Background(), "brands", "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Acme", doc["name"])
	assert.Equal(t, 12.5, doc["price"])
	assert.Equal(t, []interface{}{"a"}, doc["keywords"])
	assert.NotContains(t, doc, "id")

	_, ok, err = s.Get(context.Background(), "brands", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoStore_ListIDsPaginates(t *testing.T) {
	api := &mockDynamo{scanPages: [][]map[string]types.AttributeValue{
		{idItem("a"), idItem("b")},
		{idItem("c")},
	}}
	s := NewDynamoStore(api, WithTable("products", "Products"))

	ids, err := s.ListIDs(context.Background(), "products")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 2, api.scanCalls)
	assert.Equal(t, "Products", s.TableName("products"))
}

func TestDynamoStore_CommitUpserts(t *testing.T) {
	api := &mockDynamo{}
	stamp := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	s := NewDynamoStore(api, WithDynamoClock(func() time.Time { return stamp }))

	err := s.CommitUpserts(context.Background(), []Upsert{
		{Collection: "brands", ID: "b1", Data: Document{"name": "New", "updatedAt": ServerTimestamp}, Merge: true},
		{Collection: "brands", ID: "b2", Data: Document{"name": "Fresh", "createdAt": ServerTimestamp, "updatedAt": ServerTimestamp}},
	})
	require.NoError(t, err)
	require.Len(t, api.transacts, 1)
	items := api.transacts[0].TransactItems
	require.Len(t, items, 2)

	upd := items[0].Update
	require.NotNil(t, upd)
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1", aws.ToString(upd.UpdateExpression))
	assert.Equal(t, map[string]string{"#f0": "name", "#f1": "updatedAt"}, upd.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2026-05-04T03:02:01Z"}, upd.ExpressionAttributeValues[":v1"])

	put := items[1].Put
	require.NotNil(t, put)
	assert.Equal(t, "brands", aws.ToString(put.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "b2"}, put.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2026-05-04T03:02:01Z"}, put.Item["createdAt"])
}

func TestDynamoStore_CommitDeletes(t *testing.T) {
	api := &mockDynamo{}
	s := NewDynamoStore(api)

	require.NoError(t, s.CommitDeletes(context.Background(), []DocRef{{Collection: "brands", ID: "b9"}}))
	require.Len(t, api.transacts, 1)
	del := api.transacts[0].TransactItems[0].Delete
	require.NotNil(t, del)
	assert.Equal(t, idItem("b9"), del.Key)

	require.NoError(t, s.CommitDeletes(context.Background(), nil))
	assert.Len(t, api.transacts, 1)
}

func TestDynamoStore_RejectsOversizedBatch(t *testing.T) {
	s := NewDynamoStore(&mockDynamo{})
	refs := make([]DocRef, DynamoMaxTransactItems+1)
	err := s.CommitDeletes(context.Background(), refs)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestDynamoStore_ClassifiesCancelledTransactions(t *testing.T) {
	api := &mockDynamo{txErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("None")}, {Code: aws.String("ThrottlingError")}},
	}}
	s := NewDynamoStore(api)

	err := s.CommitDeletes(context.Background(), []DocRef{{Collection: "brands", ID: "b1"}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	api.txErr = &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}
	err = s.CommitDeletes(context.Background(), []DocRef{{Collection: "brands", ID: "b1"}})
	assert.False(t, IsRetryable(err))
}
