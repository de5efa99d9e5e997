package ports

// SignatureRecoverer recovers the address that signed a message
type SignatureRecoverer interface {
	RecoverAddress(message []byte, signature string) (string, error)
}
