package domain

import "errors"

var (
	// ErrTransportFailure covers network errors, timeouts and unusable backend replies.
	ErrTransportFailure = errors.New("backend transport failure")
	// ErrInvalidCredentials is returned by the login gateway when the backend rejects the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidState signals a caller defect, e.g. a profile update without an active identity.
	ErrInvalidState = errors.New("invalid session state")
	// ErrStorageUnavailable wraps any failure of the durable credential store.
	ErrStorageUnavailable = errors.New("credential storage unavailable")
	// ErrSessionExpired is returned when the backend rejects the active token on an authenticated call.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotInitialized is returned when the session contract is used before the manager is started.
	ErrNotInitialized = errors.New("session manager not initialized")
)

// DefaultLoginMessage is shown when the backend does not say why a login failed.
const DefaultLoginMessage = "could not sign in"

// LoginError carries a message that can be shown next to the login form.
type LoginError struct {
	Cause   error
	Message string
}

func (e *LoginError) Error() string {
	if e.Message == "" {
		return DefaultLoginMessage
	}
	return e.Message
}

func (e *LoginError) Unwrap() error { return e.Cause }

// NewLoginError builds a LoginError, falling back to DefaultLoginMessage.
func NewLoginError(cause error, message string) *LoginError {
	if message == "" {
		message = DefaultLoginMessage
	}
	return &LoginError{Cause: cause, Message: message}
}

// DisplayMessage returns the user-facing text for a login failure.
func DisplayMessage(err error) string {
	var le *LoginError
	if errors.As(err, &le) {
		return le.Error()
	}
	return DefaultLoginMessage
}
