package contract

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// TraceabilityABI is the method surface of the product traceability contract
const TraceabilityABI = `[
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"isAuthorized","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isProductExists","stateMutability":"view","inputs":[{"name":"productId","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"createProduct","stateMutability":"nonpayable","inputs":[
		{"name":"productId","type":"string"},
		{"name":"name","type":"string"},
		{"name":"ipfsHash","type":"string"},
		{"name":"location","type":"string"},
		{"name":"status","type":"uint8"}
	],"outputs":[]},
	{"type":"function","name":"addStep","stateMutability":"nonpayable","inputs":[
		{"name":"productId","type":"string"},
		{"name":"location","type":"string"},
		{"name":"description","type":"string"},
		{"name":"status","type":"uint8"}
	],"outputs":[]},
	{"type":"function","name":"getProduct","stateMutability":"view","inputs":[{"name":"productId","type":"string"}],"outputs":[
		{"name":"name","type":"string"},
		{"name":"ipfsHash","type":"string"},
		{"name":"creator","type":"address"},
		{"name":"status","type":"uint8"},
		{"name":"steps","type":"tuple[]","components":[
			{"name":"location","type":"string"},
			{"name":"description","type":"string"},
			{"name":"timestamp","type":"uint256"},
			{"name":"actor","type":"address"},
			{"name":"status","type":"uint8"}
		]},
		{"name":"location","type":"string"}
	]},
	{"type":"function","name":"getSteps","stateMutability":"view","inputs":[{"name":"productId","type":"string"}],"outputs":[
		{"name":"","type":"tuple[]","components":[
			{"name":"location","type":"string"},
			{"name":"description","type":"string"},
			{"name":"timestamp","type":"uint256"},
			{"name":"actor","type":"address"},
			{"name":"status","type":"uint8"}
		]}
	]},
	{"type":"function","name":"getProductsByCreator","stateMutability":"view","inputs":[{"name":"creator","type":"address"}],"outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"authorize","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[]},
	{"type":"function","name":"revoke","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[]}
]`

// StepTuple is the ABI shape of a step as returned by getSteps and getProduct
type StepTuple struct {
	Location    string
	Description string
	Timestamp   *big.Int
	Actor       common.Address
	Status      uint8
}

// productTuple receives the outputs of getProduct
type productTuple struct {
	Name     string
	IpfsHash string
	Creator  common.Address
	Status   uint8
	Steps    []StepTuple
	Location string
}

// ParseABI parses TraceabilityABI
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(TraceabilityABI))
}
