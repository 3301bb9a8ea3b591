package auth

// OAuth scopes understood by the health analysis API.
const (
	ScopeHealthRead  = "health:read"
	ScopeHealthWrite = "health:write"
)
