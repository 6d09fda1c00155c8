package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voxbridge/internal/contact"
)

type fakeDynamo struct {
	getOut      *dynamodb.GetItemOutput
	getErr      error
	putErr      error
	describeOut *dynamodb.DescribeTableOutput
	describeErr error

	lastGetInput *dynamodb.GetItemInput
	putInputs    []*dynamodb.PutItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInputs = append(f.putInputs, in)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.describeOut == nil {
		return &dynamodb.DescribeTableOutput{}, f.describeErr
	}
	return f.describeOut, f.describeErr
}

func mustNewStore(t *testing.T, db *fakeDynamo) *Store {
	t.Helper()
	s, err := New(db, "voxbridge")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func sAttr(item map[string]types.AttributeValue, key string) string {
	v, _ := item[key].(*types.AttributeValueMemberS)
	if v == nil {
		return ""
	}
	return v.Value
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.ErrorContains(t, err, "table name")
}

func TestUpsertThenLoad(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	sess := &contact.Session{
		ContactID:       "whatsapp:+4915112345678",
		Step:            contact.StepReady,
		SourceLang:      "de",
		TargetLang:      "en",
		VoicePreference: contact.VoiceMale,
		UsageCounter:    42,
	}
	require.NoError(t, s.Upsert(context.Background(), sess))
	require.Len(t, db.putInputs, 1)

	item := db.putInputs[0].Item
	require.Equal(t, "CONTACT#whatsapp:+4915112345678", sAttr(item, "PK"))
	require.Equal(t, skSession, sAttr(item, "SK"))
	require.Equal(t, "free", sAttr(item, "planTier"))
	require.Nil(t, db.putInputs[0].ConditionExpression)

	db.getOut = &dynamodb.GetItemOutput{Item: item}
	got, err := s.Load(context.Background(), sess.ContactID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, contact.StepReady, got.Step)
	require.Equal(t, "de", got.SourceLang)
	require.Equal(t, "en", got.TargetLang)
	require.Equal(t, contact.VoiceMale, got.VoicePreference)
	require.Equal(t, int64(42), got.UsageCounter)
	require.True(t, got.UpdatedAt.Equal(s.now()))
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestLoad_Missing(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	got, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		db   *fakeDynamo
	}{
		{"api error", &fakeDynamo{getErr: errors.New("throttled")}},
		{"missing step", &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"contactId": &types.AttributeValueMemberS{Value: "c"},
		}}}},
		{"bad counter", &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"contactId":    &types.AttributeValueMemberS{Value: "c"},
			"step":         &types.AttributeValueMemberS{Value: "READY"},
			"usageCounter": &types.AttributeValueMemberS{Value: "many"},
		}}}},
		{"unknown step", &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"contactId": &types.AttributeValueMemberS{Value: "c"},
			"step":      &types.AttributeValueMemberS{Value: "SLEEPING"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustNewStore(t, tt.db).Load(context.Background(), "c")
			var pe *contact.PersistenceError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, "load", pe.Op)
		})
	}
}

func TestUpsert_Error(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{putErr: errors.New("boom")})
	err := s.Upsert(context.Background(), &contact.Session{ContactID: "c", Step: contact.StepReady})
	var pe *contact.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "upsert", pe.Op)
	require.ErrorContains(t, err, "boom")
}

func TestInsertRecord(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	r := &contact.Record{
		ID: "0b6f", ContactID: "c1", OriginalText: "hola", TranslatedText: "hello",
		SourceLang: "es", DestLang: "en",
	}
	require.NoError(t, s.InsertRecord(context.Background(), r))
	require.Len(t, db.putInputs, 1)

	in := db.putInputs[0]
	require.NotNil(t, in.ConditionExpression)
	require.Contains(t, *in.ConditionExpression, "attribute_not_exists")
	require.Equal(t, "REC#2026-03-01T12:00:00Z#0b6f", sAttr(in.Item, "SK"))
	require.Equal(t, "hello", sAttr(in.Item, "translatedText"))
}

func TestInsertRecord_Errors(t *testing.T) {
	s := mustNewStore(t, &fakeDynamo{})
	err := s.InsertRecord(context.Background(), &contact.Record{ContactID: "c"})
	require.ErrorContains(t, err, "id is required")

	s = mustNewStore(t, &fakeDynamo{putErr: errors.New("ConditionalCheckFailed")})
	err = s.InsertRecord(context.Background(), &contact.Record{ID: "r", ContactID: "c"})
	var pe *contact.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "insert_record", pe.Op)
}

func TestPing(t *testing.T) {
	require.NoError(t, mustNewStore(t, &fakeDynamo{}).Ping(context.Background()))

	active := &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}
	require.NoError(t, mustNewStore(t, &fakeDynamo{describeOut: active}).Ping(context.Background()))

	deleting := &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusDeleting}}
	require.ErrorContains(t, mustNewStore(t, &fakeDynamo{describeOut: deleting}).Ping(context.Background()), "DELETING")

	require.Error(t, mustNewStore(t, &fakeDynamo{describeErr: errors.New("no such table")}).Ping(context.Background()))
}
