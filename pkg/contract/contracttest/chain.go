// Package contracttest provides an in-memory traceability contract that
// speaks the real ABI encoding, with hooks for injecting node and wallet
// failures.
package contracttest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/contract"
)

// DefaultAddress is where NewChain deploys the contract
var DefaultAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

const ChainID int64 = 1337

var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)

type productRecord struct {
	name     string
	hash     string
	creator  common.Address
	status   uint8
	location string
	steps    []contract.StepTuple
}

// Chain is a single-contract chain. It is safe for concurrent use.
type Chain struct {
	mu         sync.Mutex
	abi        abi.ABI
	address    common.Address
	deployed   bool
	down       bool
	owner      common.Address
	authorized map[common.Address]bool
	products   map[string]*productRecord
	byCreator  map[common.Address][]string
	receipts   map[common.Hash]*ethtypes.Receipt
	block      uint64
	nonce      uint64

	calls        map[string]int
	sent         map[string]int
	opened       int
	closed       int
	corrupt      map[string]bool
	hang         map[string]bool
	fail         map[string]int
	revertOnMine map[string]bool

	rejectSends       bool
	insufficientFunds bool
}

// NewChain deploys the contract with owner as the owner and first authorized address
func NewChain(owner common.Address) *Chain {
	parsed, err := contract.ParseABI()
	if err != nil {
		panic(err)
	}
	return &Chain{
		abi:          parsed,
		address:      DefaultAddress,
		deployed:     true,
		owner:        owner,
		authorized:   map[common.Address]bool{owner: true},
		products:     make(map[string]*productRecord),
		byCreator:    make(map[common.Address][]string),
		receipts:     make(map[common.Hash]*ethtypes.Receipt),
		block:        1,
		calls:        make(map[string]int),
		sent:         make(map[string]int),
		corrupt:      make(map[string]bool),
		hang:         make(map[string]bool),
		fail:         make(map[string]int),
		revertOnMine: make(map[string]bool),
	}
}

func (c *Chain) Address() common.Address {
	return c.address
}

// SetDeployed removes or restores the contract code
func (c *Chain) SetDeployed(deployed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deployed = deployed
}

// SetDown makes every liveness probe fail
func (c *Chain) SetDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = down
}

// SetAuthorized edits the allow-list directly, without a transaction
func (c *Chain) SetAuthorized(addr common.Address, authorized bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorized[addr] = authorized
}

// Corrupt makes method answer with bytes that do not decode
func (c *Chain) Corrupt(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corrupt[method] = true
}

// Hang makes method block until the caller's context ends
func (c *Chain) Hang(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hang[method] = true
}

// FailNext makes the next n calls or sends of method fail with a transient node error
func (c *Chain) FailNext(method string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[method] = n
}

// RevertOnMine makes transactions of method mine with a failed status
func (c *Chain) RevertOnMine(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertOnMine[method] = true
}

// RejectSends makes the wallet prompt decline every transaction
func (c *Chain) RejectSends(reject bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectSends = reject
}

// SetInsufficientFunds makes every transaction fail for lack of gas money
func (c *Chain) SetInsufficientFunds(insufficient bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insufficientFunds = insufficient
}

// Calls returns how many eth_calls reached method
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Transactions returns how many transactions were broadcast, optionally for one method
func (c *Chain) Transactions(method ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(method) > 0 {
		return c.sent[method[0]]
	}
	total := 0
	for _, n := range c.sent {
		total += n
	}
	return total
}

// OpenHandles returns the number of provider handles not yet closed
func (c *Chain) OpenHandles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened - c.closed
}

// Handles returns the number of provider handles ever opened
func (c *Chain) Handles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Provider opens a read-only handle
func (c *Chain) Provider() *Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	return &Provider{chain: c}
}

// Signer opens a signing handle for from
func (c *Chain) Signer(from common.Address) *Signer {
	return &Signer{Provider: c.Provider(), from: from}
}

// Dial satisfies evm.Dialer
func (c *Chain) Dial(ctx context.Context, endpoint string) (chains.Provider, error) {
	return c.Provider(), nil
}

func (c *Chain) blockNumber() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return 0, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
	}
	return c.block, nil
}

func (c *Chain) code() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deployed {
		return nil
	}
	return []byte{0x60, 0x80, 0x60, 0x40}
}

// before applies the fault hooks shared by calls and sends
func (c *Chain) before(ctx context.Context, method string) error {
	c.mu.Lock()
	hang := c.hang[method]
	if c.fail[method] > 0 {
		c.fail[method]--
		c.mu.Unlock()
		return errors.New("503 Service Unavailable: upstream timeout")
	}
	c.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (c *Chain) decode(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("missing method selector")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (c *Chain) call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	method, args, err := c.decode(msg.Data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls[method.Name]++
	c.mu.Unlock()

	if err := c.before(ctx, method.Name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.deployed || msg.To == nil || *msg.To != c.address {
		return nil, nil
	}
	if c.corrupt[method.Name] {
		return []byte{0xba, 0xad}, nil
	}

	switch method.Name {
	case "owner":
		return method.Outputs.Pack(c.owner)
	case "isAuthorized":
		return method.Outputs.Pack(c.authorized[args[0].(common.Address)])
	case "isProductExists":
		_, ok := c.products[args[0].(string)]
		return method.Outputs.Pack(ok)
	case "getProduct":
		p, ok := c.products[args[0].(string)]
		if !ok {
			return nil, newRevert("Product does not exist")
		}
		return method.Outputs.Pack(p.name, p.hash, p.creator, p.status, p.steps, p.location)
	case "getSteps":
		p, ok := c.products[args[0].(string)]
		if !ok {
			return nil, newRevert("Product does not exist")
		}
		return method.Outputs.Pack(p.steps)
	case "getProductsByCreator":
		ids := c.byCreator[args[0].(common.Address)]
		if ids == nil {
			ids = []string{}
		}
		return method.Outputs.Pack(ids)
	default:
		return nil, fmt.Errorf("%s is not a view method", method.Name)
	}
}

func (c *Chain) send(ctx context.Context, from, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	method, args, err := c.decode(data)
	if err != nil {
		return nil, err
	}
	if err := c.before(ctx, method.Name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.insufficientFunds {
		return nil, errors.New("insufficient funds for gas * price + value: balance 0")
	}
	if !c.deployed || to != c.address {
		return nil, errors.New("execution reverted")
	}
	if err := c.check(from, method.Name, args); err != nil {
		return nil, err
	}
	if c.rejectSends {
		return nil, errors.New("user rejected transaction (action=\"sendTransaction\")")
	}

	c.nonce++
	c.block++
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    c.nonce,
		To:       &to,
		Data:     data,
		Gas:      120_000,
		GasPrice: big.NewInt(1),
	})
	receipt := &ethtypes.Receipt{
		TxHash:      tx.Hash(),
		Status:      ethtypes.ReceiptStatusSuccessful,
		BlockNumber: new(big.Int).SetUint64(c.block),
	}
	if c.revertOnMine[method.Name] {
		receipt.Status = ethtypes.ReceiptStatusFailed
	} else {
		c.apply(from, method.Name, args)
	}
	c.receipts[tx.Hash()] = receipt
	c.sent[method.Name]++
	return tx, nil
}

// check enforces the contract's require statements. Caller holds mu.
func (c *Chain) check(from common.Address, method string, args []any) error {
	switch method {
	case "createProduct":
		if !c.authorized[from] {
			return newRevert("Not authorized")
		}
		if _, ok := c.products[args[0].(string)]; ok {
			return newRevert("Product already exists")
		}
	case "addStep":
		if !c.authorized[from] {
			return newRevert("Not authorized")
		}
		if _, ok := c.products[args[0].(string)]; !ok {
			return newRevert("Product does not exist")
		}
		if args[3].(uint8) > 8 {
			return newRevert("Invalid status")
		}
	case "authorize", "revoke":
		if from != c.owner {
			return newRevert("Only owner can perform this action")
		}
	default:
		return fmt.Errorf("%s is not a mutating method", method)
	}
	return nil
}

// apply mutates state for a mined transaction. Caller holds mu.
func (c *Chain) apply(from common.Address, method string, args []any) {
	switch method {
	case "createProduct":
		id := args[0].(string)
		c.products[id] = &productRecord{
			name:     args[1].(string),
			hash:     args[2].(string),
			location: args[3].(string),
			status:   args[4].(uint8),
			creator:  from,
			steps:    []contract.StepTuple{},
		}
		c.byCreator[from] = append(c.byCreator[from], id)
	case "addStep":
		p := c.products[args[0].(string)]
		p.steps = append(p.steps, contract.StepTuple{
			Location:    args[1].(string),
			Description: args[2].(string),
			Timestamp:   big.NewInt(time.Now().Unix()),
			Actor:       from,
			Status:      args[3].(uint8),
		})
	case "authorize":
		c.authorized[args[0].(common.Address)] = true
	case "revoke":
		c.authorized[args[0].(common.Address)] = false
	}
}

func (c *Chain) receipt(hash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// RevertError mimics the JSON-RPC error a node returns for a reverted call
type RevertError struct {
	Reason string
	data   string
}

func newRevert(reason string) *RevertError {
	encoded, err := abi.Arguments{{Type: mustType("string")}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return &RevertError{Reason: reason, data: hexutil.Encode(append(append([]byte{}, revertSelector...), encoded...))}
}

func (e *RevertError) Error() string {
	return "execution reverted"
}

func (e *RevertError) ErrorCode() int {
	return 3
}

func (e *RevertError) ErrorData() interface{} {
	return e.data
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Provider is a read-only handle on a Chain
type Provider struct {
	chain *Chain
	once  sync.Once
}

func (p *Provider) BlockNumber(ctx context.Context) (uint64, error) {
	return p.chain.blockNumber()
}

func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(ChainID), nil
}

func (p *Provider) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if account != p.chain.address {
		return nil, nil
	}
	return p.chain.code(), nil
}

func (p *Provider) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return p.chain.call(ctx, call)
}

func (p *Provider) Close() {
	p.once.Do(func() {
		p.chain.mu.Lock()
		defer p.chain.mu.Unlock()
		p.chain.closed++
	})
}

// Signer is a signing handle on a Chain for one account
type Signer struct {
	*Provider
	from common.Address
}

func (s *Signer) Account() common.Address {
	return s.from
}

func (s *Signer) SendCall(ctx context.Context, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	return s.chain.send(ctx, s.from, to, data)
}

func (s *Signer) WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	return s.chain.receipt(tx.Hash())
}

var (
	_ chains.Provider        = (*Provider)(nil)
	_ chains.SigningProvider = (*Signer)(nil)
)
