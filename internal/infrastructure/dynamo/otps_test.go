package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}
func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

// --- helpers ---

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleOTP(id string) domain.OTPRecord {
	return domain.OTPRecord{
		Email:     "a@b.com",
		OTPID:     id,
		Code:      "123456",
		CreatedAt: created,
		ExpiresAt: created.Add(10 * time.Minute),
		TTL:       created.Add(10 * time.Minute).Unix(),
	}
}

func item(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	m, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return m
}

func strAttr(m map[string]types.AttributeValue, key string) string {
	s, _ := m[key].(*types.AttributeValueMemberS)
	if s == nil {
		return ""
	}
	return s.Value
}

// --- tests ---

func TestOTPRepo_CreateMarshalsTTL(t *testing.T) {
	api := &mockAPI{}
	rec := sampleOTP("01A")
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		n, ok := in.Item["ttl"].(*types.AttributeValueMemberN)
		return *in.TableName == "otps" &&
			strAttr(in.Item, "email") == "a@b.com" &&
			strAttr(in.Item, "otp_id") == "01A" &&
			strAttr(in.Item, "code") == "123456" &&
			ok && n.Value != "" &&
			*in.ConditionExpression == "attribute_not_exists(otp_id)"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	require.NoError(t, NewOTPRepo(api, "otps").Create(context.Background(), &rec))
	api.AssertExpectations(t)
}

func TestOTPRepo_CreateConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	rec := sampleOTP("01A")
	err := NewOTPRepo(api, "otps").Create(context.Background(), &rec)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestOTPRepo_FindLatestQueriesNewestFirst(t *testing.T) {
	api := &mockAPI{}
	want := sampleOTP("01B")
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return !*in.ScanIndexForward && *in.Limit == 1 &&
			strAttr(in.ExpressionAttributeValues, ":e") == "a@b.com"
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item(t, want)}}, nil)

	got, err := NewOTPRepo(api, "otps").FindLatest(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, want.OTPID, got.OTPID)
	assert.Equal(t, want.Code, got.Code)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestOTPRepo_FindLatestNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := NewOTPRepo(api, "otps").FindLatest(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOTPRepo_IncrementAttempts(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return *in.UpdateExpression == "ADD attempts :one" &&
			*in.ConditionExpression == "attribute_exists(otp_id)" &&
			in.ReturnValues == types.ReturnValueUpdatedNew &&
			strAttr(in.Key, "otp_id") == "01A"
	})).Return(&dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"attempts": &types.AttributeValueMemberN{Value: "3"},
	}}, nil)

	rec := sampleOTP("01A")
	n, err := NewOTPRepo(api, "otps").IncrementAttempts(context.Background(), &rec)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOTPRepo_IncrementAttemptsOnDeletedRecord(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	rec := sampleOTP("01A")
	_, err := NewOTPRepo(api, "otps").IncrementAttempts(context.Background(), &rec)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOTPRepo_MarkVerified(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		b, _ := in.ExpressionAttributeValues[":v0"].(*types.AttributeValueMemberBOOL)
		return *in.UpdateExpression == "SET #f0 = :v0" &&
			in.ExpressionAttributeNames["#f0"] == "verified" &&
			b != nil && b.Value
	})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	repo := NewOTPRepo(api, "otps")
	rec := sampleOTP("01A")
	require.NoError(t, repo.MarkVerified(context.Background(), &rec))
	assert.ErrorIs(t, repo.MarkVerified(context.Background(), &rec), domain.ErrNotFound)
}

func TestOTPRepo_DeleteAll(t *testing.T) {
	api := &mockAPI{}
	a, b := sampleOTP("01A"), sampleOTP("01B")
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ProjectionExpression != nil
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item(t, a), item(t, b)}}, nil)
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return strAttr(in.Key, "otp_id") == "01A"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return strAttr(in.Key, "otp_id") == "01B"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)

	n, err := NewOTPRepo(api, "otps").DeleteAll(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	api.AssertNumberOfCalls(t, "DeleteItem", 2)
}

func TestOTPRepo_DeleteAllStopsOnError(t *testing.T) {
	api := &mockAPI{}
	a, b := sampleOTP("01A"), sampleOTP("01B")
	api.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item(t, a), item(t, b)}}, nil)
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	n, err := NewOTPRepo(api, "otps").DeleteAll(context.Background(), "a@b.com")
	assert.ErrorContains(t, err, "throttled")
	assert.Equal(t, 0, n)
}

func TestOTPRepo_ListAllScans(t *testing.T) {
	api := &mockAPI{}
	a := sampleOTP("01A")
	api.On("Scan", mock.Anything, mock.Anything).
		Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{item(t, a)}}, nil)

	recs, err := NewOTPRepo(api, "otps").List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "01A", recs[0].OTPID)
}

func TestRateLimitRepo_RoundTrip(t *testing.T) {
	api := &mockAPI{}
	until := created.Add(time.Hour)
	rec := domain.RateLimitRecord{Email: "a@b.com", RequestCount: 5, FirstRequestAt: created, BlockedUntil: &until, TTL: until.Unix()}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item(t, rec)}, nil).Once()
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	repo := NewRateLimitRepo(api, "otp_attempts")
	got, err := repo.Get(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 5, got.RequestCount)
	require.NotNil(t, got.BlockedUntil)
	assert.True(t, until.Equal(*got.BlockedUntil))

	_, err = repo.Get(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimitRepo_PutOmitsNilBlock(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		_, hasBlock := in.Item["blocked_until"]
		return !hasBlock && strAttr(in.Item, "email") == "a@b.com"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	rec := domain.RateLimitRecord{Email: "a@b.com", RequestCount: 1, FirstRequestAt: created}
	require.NoError(t, NewRateLimitRepo(api, "otp_attempts").Put(context.Background(), &rec))
	api.AssertExpectations(t)
}

func numAttr(m map[string]types.AttributeValue, key string) string {
	n, _ := m[key].(*types.AttributeValueMemberN)
	if n == nil {
		return ""
	}
	return n.Value
}

func TestRateLimitRepo_PutNewRecordRequiresAbsentVersion(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.ConditionExpression == "attribute_not_exists(#v)" &&
			in.ExpressionAttributeNames["#v"] == "version" &&
			numAttr(in.Item, "version") == "1"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	rec := domain.RateLimitRecord{Email: "a@b.com", RequestCount: 1, FirstRequestAt: created}
	require.NoError(t, NewRateLimitRepo(api, "otp_attempts").Put(context.Background(), &rec))
	assert.Equal(t, int64(1), rec.Version)
	api.AssertExpectations(t)
}

func TestRateLimitRepo_PutChecksStoredVersion(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.ConditionExpression == "#v = :v" &&
			numAttr(in.ExpressionAttributeValues, ":v") == "3" &&
			numAttr(in.Item, "version") == "4" &&
			numAttr(in.Item, "request_count") == "4"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	rec := domain.RateLimitRecord{Email: "a@b.com", RequestCount: 4, FirstRequestAt: created, Version: 3}
	require.NoError(t, NewRateLimitRepo(api, "otp_attempts").Put(context.Background(), &rec))
	assert.Equal(t, int64(4), rec.Version)
	api.AssertExpectations(t)
}

func TestRateLimitRepo_PutLostRaceIsConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	rec := domain.RateLimitRecord{Email: "a@b.com", RequestCount: 4, FirstRequestAt: created, Version: 3}
	err := NewRateLimitRepo(api, "otp_attempts").Put(context.Background(), &rec)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(3), rec.Version)
}

func TestUserRepo_GetByEmailNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return *in.IndexName == "email-index"
	})).Return(&dynamodb.QueryOutput{}, nil)

	_, err := NewUserRepo(api, "users").GetByEmail(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_CreateWritesUserAndEmailClaim(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 {
			return false
		}
		user, claim := in.TransactItems[0].Put, in.TransactItems[1].Put
		return user != nil && claim != nil &&
			strAttr(user.Item, "user_id") == "u1" &&
			strAttr(user.Item, "email") == "a@b.com" &&
			strAttr(claim.Item, "user_id") == "email#a@b.com" &&
			strAttr(claim.Item, "owner_id") == "u1" &&
			claim.Item["email"] == nil &&
			*user.ConditionExpression == "attribute_not_exists(user_id)" &&
			*claim.ConditionExpression == "attribute_not_exists(user_id)"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := NewUserRepo(api, "users").Create(context.Background(), &domain.User{UserID: "u1", Email: "a@b.com"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestUserRepo_CreateDuplicateEmailConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	})

	err := NewUserRepo(api, "users").Create(context.Background(), &domain.User{UserID: "u2", Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_CreateOtherCancellationIsNotConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ThrottlingError")}},
	})

	err := NewUserRepo(api, "users").Create(context.Background(), &domain.User{UserID: "u2", Email: "a@b.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}
