package keygate

import (
	"errors"
	"fmt"

	"github.com/layer-3/keygate/core"
)

// ErrUnauthenticated is returned when a protected call is made without a usable credential
var ErrUnauthenticated = errors.New("unauthenticated")

// APIError is an error response from a keygate server
type APIError struct {
	Status int
	Kind   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("keygate: %s (status %d)", e.Kind, e.Status)
}

// Unwrap maps the response kind back to the matching core error, so callers
// can use errors.Is(err, core.ErrInvalidNonce).
func (e *APIError) Unwrap() error {
	if err := core.FromKind(e.Kind); err != nil {
		return err
	}
	if e.Kind == "Unauthenticated" {
		return ErrUnauthenticated
	}
	return nil
}
