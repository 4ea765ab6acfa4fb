package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressesEqual compares two hex addresses ignoring case. Malformed input never matches.
func AddressesEqual(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return strings.EqualFold(common.HexToAddress(a).Hex(), common.HexToAddress(b).Hex())
}
