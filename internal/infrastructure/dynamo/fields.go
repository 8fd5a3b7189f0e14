package dynamo

// DynamoDB attribute names used in key and update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID           = "user_id"
	fieldUsername         = "username"
	fieldEmail            = "email"
	fieldSessionID        = "session_id"
	fieldCredentialID     = "credential_id"
	fieldType             = "type"
	fieldData             = "data"
	fieldLoginEntries     = "login_entries"
	fieldEnable           = "enable"
	fieldUpdatedAt        = "updated_at"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldExpiresAt        = "expires_at"
)

// Global secondary indexes.
const (
	indexUsername     = "username-index"
	indexEmail        = "email-index"
	indexUserID       = "user_id-index"
	indexRefreshToken = "refresh_token-index"
)
