package domain

// OTP types.
const (
	OTPVerification = "verification"
	OTPReset        = "reset"
)

// OTP is a one-time code sent to an email address.
// PK: email, SK: type, so at most one unconsumed code exists per (email, type).
// ExpiresAt and LastSent are Unix seconds; ExpiresAt doubles as the DynamoDB TTL.
type OTP struct {
	Email     string `json:"email" dynamodbav:"email"`
	Type      string `json:"type" dynamodbav:"type"`
	Code      string `json:"-" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
	LastSent  int64  `json:"last_sent" dynamodbav:"last_sent"`
}
