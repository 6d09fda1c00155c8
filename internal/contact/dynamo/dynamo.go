// Package dynamo is a [contact.Store] backed by a single DynamoDB table.
//
// Items share the partition key CONTACT#<id>. The session row uses the sort
// key SESSION; translation records use REC#<rfc3339nano>#<record id> so a
// query on the partition returns them in order.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/MrWong99/voxbridge/internal/contact"
)

const (
	skSession   = "SESSION"
	skRecPrefix = "REC#"
)

// dynamodbAPI is the subset of *dynamodb.Client used by Store.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store implements [contact.Store] and [contact.Pinger].
type Store struct {
	api   dynamodbAPI
	table string
	now   func() time.Time
}

var (
	_ contact.Store  = (*Store)(nil)
	_ contact.Pinger = (*Store)(nil)
)

// New returns a Store over table. api is usually dynamodb.NewFromConfig(cfg).
func New(api dynamodbAPI, table string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamo: table name must not be empty")
	}
	return &Store{api: api, table: table, now: time.Now}, nil
}

// NewAWS loads the default AWS configuration (optionally pinned to region)
// and returns a Store using its DynamoDB client.
func NewAWS(ctx context.Context, table, region string) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), table)
}

func contactPK(id string) string { return "CONTACT#" + id }

func recordSK(r *contact.Record) string {
	return skRecPrefix + r.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + r.ID
}

// Load implements [contact.Store] with a consistent read.
func (s *Store) Load(ctx context.Context, contactID string) (*contact.Session, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: contactPK(contactID)},
			"SK": &types.AttributeValueMemberS{Value: skSession},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, &contact.PersistenceError{Op: "load", Err: err}
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	sess, err := itemToSession(out.Item)
	if err != nil {
		return nil, &contact.PersistenceError{Op: "load", Err: err}
	}
	return sess, nil
}

// Upsert implements [contact.Store]. The item is replaced whole.
func (s *Store) Upsert(ctx context.Context, sess *contact.Session) error {
	now := s.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	if sess.PlanTier == "" {
		sess.PlanTier = contact.PlanFree
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      sessionItem(sess),
	})
	if err != nil {
		return &contact.PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

// InsertRecord implements [contact.Store]. The put is conditional so an
// existing record is never overwritten.
func (s *Store) InsertRecord(ctx context.Context, r *contact.Record) error {
	if r.ID == "" {
		return &contact.PersistenceError{Op: "insert_record", Err: errors.New("record id is required")}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                recordItem(r),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return &contact.PersistenceError{Op: "insert_record", Err: err}
	}
	return nil
}

// Ping implements [contact.Pinger] by describing the table.
func (s *Store) Ping(ctx context.Context) error {
	out, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return fmt.Errorf("dynamo: describe table %q: %w", s.table, err)
	}
	if out != nil && out.Table != nil && out.Table.TableStatus != "" && out.Table.TableStatus != types.TableStatusActive &&
		out.Table.TableStatus != types.TableStatusUpdating {
		return fmt.Errorf("dynamo: table %q is %s", s.table, out.Table.TableStatus)
	}
	return nil
}

func sessionItem(s *contact.Session) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":              &types.AttributeValueMemberS{Value: contactPK(s.ContactID)},
		"SK":              &types.AttributeValueMemberS{Value: skSession},
		"contactId":       &types.AttributeValueMemberS{Value: s.ContactID},
		"step":            &types.AttributeValueMemberS{Value: string(s.Step)},
		"sourceLang":      &types.AttributeValueMemberS{Value: s.SourceLang},
		"targetLang":      &types.AttributeValueMemberS{Value: s.TargetLang},
		"voicePreference": &types.AttributeValueMemberS{Value: string(s.VoicePreference)},
		"usageCounter":    &types.AttributeValueMemberN{Value: strconv.FormatInt(s.UsageCounter, 10)},
		"planTier":        &types.AttributeValueMemberS{Value: s.PlanTier},
		"createdAt":       &types.AttributeValueMemberS{Value: s.CreatedAt.Format(time.RFC3339Nano)},
		"updatedAt":       &types.AttributeValueMemberS{Value: s.UpdatedAt.Format(time.RFC3339Nano)},
	}
}

func recordItem(r *contact.Record) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: contactPK(r.ContactID)},
		"SK":             &types.AttributeValueMemberS{Value: recordSK(r)},
		"id":             &types.AttributeValueMemberS{Value: r.ID},
		"contactId":      &types.AttributeValueMemberS{Value: r.ContactID},
		"originalText":   &types.AttributeValueMemberS{Value: r.OriginalText},
		"translatedText": &types.AttributeValueMemberS{Value: r.TranslatedText},
		"sourceLang":     &types.AttributeValueMemberS{Value: r.SourceLang},
		"destLang":       &types.AttributeValueMemberS{Value: r.DestLang},
		"createdAt":      &types.AttributeValueMemberS{Value: r.CreatedAt.Format(time.RFC3339Nano)},
	}
}

func itemToSession(item map[string]types.AttributeValue) (*contact.Session, error) {
	var (
		s    contact.Session
		errs []error
		str  = func(key string) string {
			v, err := strAttr(item, key)
			errs = append(errs, err)
			return v
		}
	)
	s.ContactID = str("contactId")
	s.Step = contact.Step(str("step"))
	s.SourceLang, _ = strAttr(item, "sourceLang")
	s.TargetLang, _ = strAttr(item, "targetLang")
	pref, _ := strAttr(item, "voicePreference")
	s.VoicePreference = contact.VoicePreference(pref)
	s.PlanTier, _ = strAttr(item, "planTier")

	n, err := intAttr(item, "usageCounter")
	errs = append(errs, err)
	s.UsageCounter = n

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if !s.Step.Valid() {
		return nil, fmt.Errorf("dynamo: unknown step %q", s.Step)
	}
	s.CreatedAt = timeAttr(item, "createdAt")
	s.UpdatedAt = timeAttr(item, "updatedAt")
	return &s, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("dynamo: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamo: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamo: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamo: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// timeAttr returns the zero time for a missing or malformed timestamp.
func timeAttr(item map[string]types.AttributeValue, key string) time.Time {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
