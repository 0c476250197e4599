package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// RateLimitRepo keeps one issuance counter per email.
// PK: email. TTL attribute: ttl.
type RateLimitRepo struct {
	client    API
	tableName string
}

func NewRateLimitRepo(client API, tableName string) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName}
}

func (r *RateLimitRepo) Get(ctx context.Context, email string) (*domain.RateLimitRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("rate limit record not found: %w", domain.ErrNotFound)
	}
	var rec domain.RateLimitRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal rate limit record: %w", err)
	}
	return &rec, nil
}

// Put writes rec if the stored version still equals rec.Version, then bumps
// rec.Version. A lost race returns domain.ErrConflict.
func (r *RateLimitRepo) Put(ctx context.Context, rec *domain.RateLimitRecord) error {
	next := *rec
	next.Version = rec.Version + 1
	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal rate limit record: %w", err)
	}
	in := &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ExpressionAttributeNames: map[string]string{"#v": fieldVersion},
	}
	if rec.Version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(#v)")
	} else {
		in.ConditionExpression = aws.String("#v = :v")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Version, 10)},
		}
	}
	_, err = r.client.PutItem(ctx, in)
	if isConditionFailed(err) {
		return fmt.Errorf("rate limit record for %s changed: %w", rec.Email, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	rec.Version = next.Version
	return nil
}

func (r *RateLimitRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldEmail, email),
	})
	return err
}
