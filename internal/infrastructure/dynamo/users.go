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

// UserRepo provides typed DynamoDB operations for the users table.
// PK: user_id, GSI email-index on email.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Create writes u together with an email claim item in one transaction.
// The claim's key is derived from the email, so two users with the same
// address cannot both commit. Either condition failing yields domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	claim := strKey(fieldUserID, emailClaimKey(u.Email))
	claim[fieldOwnerID] = &types.AttributeValueMemberS{Value: u.UserID}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                claim,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("user %s exists: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// emailClaimKey is the user_id of the item reserving email. Claim items carry
// no email attribute, so they never appear in email-index.
func emailClaimKey(email string) string {
	return emailClaimPrefix + email
}

// GetByEmail reads email-index, which is eventually consistent. Create is the
// authoritative duplicate check.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
