// Package identity validates on-chain wallet addresses for runs that are
// configured against a specific funding wallet. Grounded on the teacher's
// use of go-ethereum for address handling (wallet private key/address
// config fields); kept to the common package's address validation rather
// than any signing surface, since the backtest core never submits
// transactions itself.
package identity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateWalletAddress returns an error if addr is not a well-formed hex
// Ethereum address. Optional: a run that doesn't configure a funding
// wallet never calls this.
func ValidateWalletAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("identity: %q is not a valid hex address", addr)
	}
	return nil
}

// NormalizeAddress returns the EIP-55 checksummed form of a valid address.
func NormalizeAddress(addr string) (string, error) {
	if err := ValidateWalletAddress(addr); err != nil {
		return "", err
	}
	return common.HexToAddress(addr).Hex(), nil
}
