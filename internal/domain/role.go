package domain

// Account roles. Admin unlocks the account-management endpoints.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
