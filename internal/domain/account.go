package domain

import "time"

// Account is a registered vault owner. Username and Email are stored lowercased.
type Account struct {
	UserID        string       `json:"id" dynamodbav:"user_id"`
	Username      string       `json:"username" dynamodbav:"username"`
	Email         string       `json:"email" dynamodbav:"email"`
	PasswordHash  string       `json:"-" dynamodbav:"password_hash"`
	Role          string       `json:"role" dynamodbav:"role"`
	EmailVerified bool         `json:"email_verified" dynamodbav:"email_verified"`
	EncryptionKey []byte       `json:"-" dynamodbav:"encryption_key"`
	IV            []byte       `json:"-" dynamodbav:"iv"`
	KeySalt       []byte       `json:"-" dynamodbav:"key_salt"`
	Data          []DataRecord `json:"data,omitempty" dynamodbav:"data,omitempty"`
	CreatedAt     time.Time    `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time    `json:"updated" dynamodbav:"updated_at"`
}

// DataRecord is a free-form note embedded in the account document.
type DataRecord struct {
	RecordID  string    `json:"record_id" dynamodbav:"record_id"`
	Info      string    `json:"info" dynamodbav:"info"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
	OTP      string `json:"otp"`
}
