package dynamo

// DynamoDB attribute and index names shared by the repos and the bootstrap.
const (
	fieldEmail    = "email"
	fieldOTPID    = "otp_id"
	fieldUserID   = "user_id"
	fieldVerified = "verified"
	fieldOwnerID  = "owner_id"
	fieldVersion  = "version"

	emailClaimPrefix = "email#"

	indexEmail = "email-index"
)
