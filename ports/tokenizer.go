package ports

import "github.com/layer-3/keygate/core"

// Tokenizer converts between sessions and bearer credentials
type Tokenizer interface {
	// Issue mints a credential for address
	Issue(address string) (string, *core.Session, error)

	// Decode validates a credential and returns its session
	Decode(token string) (*core.Session, error)
}
