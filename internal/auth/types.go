package auth

// UserClaims represents the JWT claims for a marketplace user. Tokens are
// minted by the main application; this service only validates them.
type UserClaims struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"` // worker, poster, admin
	IsAdmin bool   `json:"is_admin"`
}

// AuthError is an authentication failure with a stable code
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden    = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrRateLimited  = AuthError{Code: "RATE_LIMITED", Message: "too many requests, please try again later"}
)
