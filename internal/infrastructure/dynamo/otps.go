package dynamo

import (
	"context"
	"fmt"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// OTPRepo stores issued codes.
// PK: email, SK: otp_id (ULID). TTL attribute: ttl.
type OTPRepo struct {
	client    API
	tableName string
}

func NewOTPRepo(client API, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Create(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(otp_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp %s already exists: %w", rec.OTPID, domain.ErrConflict)
	}
	return err
}

// FindLatest returns the newest record for email. ULID sort keys order by
// creation time, so this is a single descending query.
func (r *OTPRepo) FindLatest(ctx context.Context, email string) (*domain.OTPRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#e = :e"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: email}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return &rec, nil
}

// IncrementAttempts atomically adds one to attempts and returns the new value.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, rec *domain.OTPRecord) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldEmail, rec.Email, fieldOTPID, rec.OTPID),
		UpdateExpression:          aws.String("ADD attempts :one"),
		ConditionExpression:       aws.String("attribute_exists(otp_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("otp %s gone: %w", rec.OTPID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return updated.Attempts, nil
}

func (r *OTPRepo) MarkVerified(ctx context.Context, rec *domain.OTPRecord) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldVerified: true})
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldOTPID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldEmail, rec.Email, fieldOTPID, rec.OTPID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp %s gone: %w", rec.OTPID, domain.ErrNotFound)
	}
	return err
}

func (r *OTPRepo) DeleteOne(ctx context.Context, rec *domain.OTPRecord) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldEmail, rec.Email, fieldOTPID, rec.OTPID),
	})
	return err
}

// DeleteAll removes every record for email and returns how many were removed.
func (r *OTPRepo) DeleteAll(ctx context.Context, email string) (int, error) {
	recs, err := r.queryEmail(ctx, email, true)
	if err != nil {
		return 0, err
	}
	for i := range recs {
		if err := r.DeleteOne(ctx, &recs[i]); err != nil {
			return i, fmt.Errorf("delete otp %s: %w", recs[i].OTPID, err)
		}
	}
	return len(recs), nil
}

// List returns every record for email, or the whole table when email is empty.
func (r *OTPRepo) List(ctx context.Context, email string) ([]domain.OTPRecord, error) {
	if email != "" {
		return r.queryEmail(ctx, email, false)
	}
	var recs []domain.OTPRecord
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.OTPRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal otps: %w", err)
		}
		recs = append(recs, batch...)
	}
	return recs, nil
}

func (r *OTPRepo) queryEmail(ctx context.Context, email string, keysOnly bool) ([]domain.OTPRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#e = :e"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: email}},
		ConsistentRead:            aws.Bool(true),
	}
	if keysOnly {
		in.ProjectionExpression = aws.String("#e, otp_id")
	}
	var recs []domain.OTPRecord
	p := dynamodb.NewQueryPaginator(r.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.OTPRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal otps: %w", err)
		}
		recs = append(recs, batch...)
	}
	return recs, nil
}
