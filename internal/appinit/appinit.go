package appinit

import "context"

type Initializer interface {
	SetApplicationToken(ctx context.Context, token string) error
}

// SetApplicationToken hands the vendor-issued token to the link. Errors are
// returned untouched so callers can match link.ErrInvalidCredential.
func SetApplicationToken(ctx context.Context, initializer Initializer, token string) error {
	return initializer.SetApplicationToken(ctx, token)
}
