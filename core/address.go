package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress checks that address is a 0x-prefixed 20-byte hex string
// and returns its lowercased form.
func ValidateAddress(address string) (string, error) {
	if len(address) != 2+2*common.AddressLength {
		return "", fmt.Errorf("address must be %d characters: %w", 2+2*common.AddressLength, ErrInvalidAddress)
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", fmt.Errorf("address must start with 0x: %w", ErrInvalidAddress)
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("address must be hex: %w", ErrInvalidAddress)
	}
	return strings.ToLower(address), nil
}

// ChecksumAddress renders a valid address in its EIP-55 mixed-case form
func ChecksumAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// SameAddress compares two addresses case-insensitively
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
