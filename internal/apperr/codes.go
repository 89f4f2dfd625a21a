package apperr

// Stable error codes. Clients branch on these; never rename an existing code.
const (
	CodeSuccess = "SUCCESS"

	CodeValidation    = "VALIDATION_ERROR"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
	CodeRouteNotFound = "ROUTE_NOT_FOUND"

	// Auth gate.
	CodeMissingToken            = "MISSING_TOKEN"
	CodeInvalidTokenFormat      = "INVALID_TOKEN_FORMAT"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeTokenInvalid            = "TOKEN_INVALID"
	CodeTokenVerificationFailed = "TOKEN_VERIFICATION_FAILED"
	CodeWrongTokenType          = "WRONG_TOKEN_TYPE"
	CodeInvalidSession          = "INVALID_SESSION"

	// Credentials and users.
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeUserInactive      = "USER_INACTIVE"
	CodeInvalidPassword   = "INVALID_PASSWORD"
	CodeUserAlreadyExists = "USER_ALREADY_EXISTS"

	// Refresh.
	CodeMissingRefreshToken = "MISSING_REFRESH_TOKEN"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeInvalidUser         = "INVALID_USER"

	// Sessions and passwords.
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeMissingSessionToken    = "MISSING_SESSION_TOKEN"
	CodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	CodeWeakPassword           = "WEAK_PASSWORD"
	CodeRegistrationDisabled   = "REGISTRATION_DISABLED"

	// Role gate.
	CodeAuthenticationRequired  = "AUTHENTICATION_REQUIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeAccessDenied            = "ACCESS_DENIED"

	// Rate limiting.
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeLoginRateLimitExceeded = "LOGIN_RATE_LIMIT_EXCEEDED"
)
