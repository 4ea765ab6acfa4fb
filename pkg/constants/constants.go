package constants

import "time"

const (
	ProbeTimeout           = 3 * time.Second  // timeout for a single liveness probe (eth_blockNumber)
	PermissionCheckTimeout = 10 * time.Second // timeout for each isAuthorized/owner check during connect
	RetryUnit              = 1 * time.Second  // linear backoff unit between contract call attempts
	DefaultRetries         = 3                // attempts made by the contract invoker
	CallContractTimeout    = 10 * time.Second // timeout for a single eth_call
	TransactionWaitTimeout = 5 * time.Minute  // upper bound when waiting for a receipt
	ReceiptPollInterval    = 2 * time.Second  // initial interval between receipt polls
	ReceiptPollMaxInterval = 15 * time.Second // ceiling for the receipt poll interval
	BackendTimeout         = 30 * time.Second // timeout for backend and gateway requests
	TLSHandshakeTimeout    = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout  = 20 * time.Second // timeout for response header
	ExpectContinueTimeout  = 1 * time.Second  // timeout for expect continue
	MaxResponseBodySize    = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
	MetadataCacheSize      = 256              // entries kept in the content metadata cache
	NotificationQueueSize  = 64               // notifications kept before the oldest are dropped
)

// Chain IDs
const (
	ChainIDMainnet   int64 = 1
	ChainIDSepolia   int64 = 11155111
	ChainIDLocalhost int64 = 1337

	DefaultChainID = ChainIDMainnet
)

var ChainNames = map[int64]string{
	ChainIDMainnet:   "mainnet",
	ChainIDSepolia:   "sepolia",
	ChainIDLocalhost: "localhost",
}

// OfficialRPCEndpoints are the public endpoints each pool starts with, in preference order.
var OfficialRPCEndpoints = map[int64][]string{
	ChainIDMainnet: {
		"https://rpc.ankr.com/eth",
		"https://ethereum-rpc.publicnode.com",
		"https://cloudflare-eth.com",
	},
	ChainIDSepolia: {
		"https://ethereum-sepolia-rpc.publicnode.com",
		"https://rpc.sepolia.org",
	},
	ChainIDLocalhost: {"http://localhost:8545"},
}

const (
	DefaultBackendURL = "http://localhost:8090"
	DefaultGatewayURL = "https://gateway.pinata.cloud"
	DefaultPinningURL = "https://api.pinata.cloud/pinning/pinFileToIPFS"
	ChainListURL      = "https://chainlist.org/rpcs.json"
)
