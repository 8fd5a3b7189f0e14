package domain

import "time"

// Credential groups the logins an account keeps for one website.
// PK: user_id, SK: credential_id.
type Credential struct {
	UserID       string       `json:"user_id" dynamodbav:"user_id"`
	CredentialID string       `json:"id" dynamodbav:"credential_id"`
	Website      string       `json:"website" dynamodbav:"website"`
	LoginEntries []LoginEntry `json:"login_entries" dynamodbav:"login_entries"`
	CreatedAt    time.Time    `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time    `json:"updated" dynamodbav:"updated_at"`
}

// LoginEntry holds one username/password pair. Password is plaintext in memory only;
// the store sees PasswordCipher and PasswordNonce.
type LoginEntry struct {
	Username       string    `json:"username" dynamodbav:"username"`
	Password       string    `json:"password" dynamodbav:"-"`
	PasswordCipher []byte    `json:"-" dynamodbav:"password"`
	PasswordNonce  []byte    `json:"-" dynamodbav:"password_nonce"`
	Notes          string    `json:"notes" dynamodbav:"notes"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

type AddCredentialRequest struct {
	Website  string `json:"website" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Notes    string `json:"notes"`
}

type UpdateCredentialRequest struct {
	Website     string `json:"website" validate:"required"`
	OldUsername string `json:"old_username" validate:"required"`
	NewUsername string `json:"new_username" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
	Notes       string `json:"notes"`
}

type DeleteCredentialRequest struct {
	Website  string `json:"website" validate:"required"`
	Username string `json:"username" validate:"required"`
}
