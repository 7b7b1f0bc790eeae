// File: utils/constants.go
package utils

// Redis key prefixes for the payment cache.
const (
	SessionCachePrefix = "payment:session:"
	IntentCachePrefix  = "payment:intent:"
	ResultCachePrefix  = "payment:result:"
)

// Context keys set by the auth middleware.
const (
	ContextMemberID = "memberID"
	ContextLogger   = "logger"
)
