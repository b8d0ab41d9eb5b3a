package domain

// Sentinel errors shared by services and adapters. Callers wrap them with
// context and match with errors.Is.
var (
	ErrInvalidURL         = errString("invalid URL")
	ErrInvalidInput       = errString("invalid input")
	ErrNotFound           = errString("not found")
	ErrUnauthenticated    = errString("unauthorized")
	ErrForbidden          = errString("forbidden")
	ErrRateLimited        = errString("rate limit exceeded")
	ErrEmailTaken         = errString("email already registered")
	ErrInvalidCredentials = errString("invalid credentials")
)

type errString string

func (e errString) Error() string { return string(e) }

// InputError carries a caller-facing reason for a rejected input while still
// matching its sentinel kind through errors.Is.
type InputError struct {
	Kind   error
	Reason string
}

func (e *InputError) Error() string { return e.Reason }
func (e *InputError) Unwrap() error { return e.Kind }

// Invalid builds an InputError of the given kind.
func Invalid(kind error, reason string) error {
	return &InputError{Kind: kind, Reason: reason}
}
