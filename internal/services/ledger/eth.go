package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/lock"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
)

// Backend is the subset of an RPC client the gateway needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

var (
	errInsufficientFunds = errors.New("insufficient funds in employer wallet")
	errReverted          = errors.New("transaction reverted")
)

type EthGateway struct {
	Backend  Backend
	Artifact *Artifact
	GasLimit uint64
	Log      logger.Logger

	chainMu sync.Mutex
	chainID *big.Int

	// senders serializes nonce assignment per signing address.
	senders lock.Locker
}

// Dial connects to rpcURL. chainID 0 means ask the node.
func Dial(ctx context.Context, rpcURL string, chainID int64, artifact *Artifact, gasLimit uint64, log logger.Logger) (*EthGateway, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc %s: %w", rpcURL, err)
	}
	g := NewEthGateway(client, artifact, gasLimit, log)
	if chainID != 0 {
		g.chainID = big.NewInt(chainID)
	}
	return g, nil
}

func NewEthGateway(backend Backend, artifact *Artifact, gasLimit uint64, log logger.Logger) *EthGateway {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &EthGateway{
		Backend:  backend,
		Artifact: artifact,
		GasLimit: gasLimit,
		Log:      log,
		senders:  lock.NewMemoryLocker(),
	}
}

func (g *EthGateway) CreateAccount(ctx context.Context) (Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, apperror.Internal("generate account key", err)
	}
	return Account{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

func (g *EthGateway) DeployEscrow(ctx context.Context, employerKey, freelancerAddress, description string, amount decimal.Decimal) (Receipt, error) {
	if !common.IsHexAddress(freelancerAddress) {
		return Receipt{}, apperror.Ledger(apperror.CodeLedgerRejected, "deploy", fmt.Errorf("invalid freelancer address %q", freelancerAddress))
	}
	key, err := parseKey(employerKey)
	if err != nil {
		return Receipt{}, apperror.Ledger(apperror.CodeLedgerRejected, "deploy", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	value := EtherToWei(amount)

	balance, err := g.Backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return Receipt{}, classify(ctx, "deploy", err)
	}
	gasPrice, err := g.Backend.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, classify(ctx, "deploy", err)
	}
	required := new(big.Int).Mul(new(big.Int).SetUint64(g.GasLimit), gasPrice)
	required.Add(required, value)
	if balance.Cmp(required) < 0 {
		return Receipt{}, apperror.Ledger(apperror.CodeInsufficientFunds, "deploy", errInsufficientFunds).
			WithMetadata("balanceWei", balance.String()).
			WithMetadata("requiredWei", required.String())
	}

	opts, err := g.transactor(ctx, key, gasPrice)
	if err != nil {
		return Receipt{}, classify(ctx, "deploy", err)
	}
	opts.Value = value

	var (
		addr common.Address
		tx   *types.Transaction
	)
	err = g.send(ctx, from, func() error {
		var derr error
		addr, tx, _, derr = bind.DeployContract(opts, g.Artifact.ABI, g.Artifact.Bytecode, g.Backend,
			common.HexToAddress(freelancerAddress), description)
		return derr
	})
	if err != nil {
		return Receipt{}, classify(ctx, "deploy", err)
	}

	g.Log.Info("escrow deploy sent", map[string]interface{}{
		"txHash": tx.Hash().Hex(), "from": from.Hex(), "contractAddress": addr.Hex(),
	})

	rcpt, err := g.wait(ctx, "deploy", tx)
	if err != nil {
		return Receipt{}, err
	}
	if rcpt.ContractAddress != (common.Address{}) {
		addr = rcpt.ContractAddress
	}
	return toReceipt(tx, rcpt, addr), nil
}

func (g *EthGateway) Invoke(ctx context.Context, contractAddress string, method Method, signerKey string) (Receipt, error) {
	op := string(method)
	fn, ok := contractFunctions[method]
	if !ok {
		return Receipt{}, apperror.Ledger(apperror.CodeLedgerRejected, op, fmt.Errorf("unknown contract method %q", method))
	}
	if !common.IsHexAddress(contractAddress) {
		return Receipt{}, apperror.Ledger(apperror.CodeLedgerRejected, op, fmt.Errorf("invalid contract address %q", contractAddress))
	}
	key, err := parseKey(signerKey)
	if err != nil {
		return Receipt{}, apperror.Ledger(apperror.CodeLedgerRejected, op, err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	gasPrice, err := g.Backend.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, classify(ctx, op, err)
	}
	opts, err := g.transactor(ctx, key, gasPrice)
	if err != nil {
		return Receipt{}, classify(ctx, op, err)
	}

	addr := common.HexToAddress(contractAddress)
	bound := bind.NewBoundContract(addr, g.Artifact.ABI, g.Backend, g.Backend, g.Backend)

	var tx *types.Transaction
	err = g.send(ctx, from, func() error {
		var terr error
		tx, terr = bound.Transact(opts, fn)
		return terr
	})
	if err != nil {
		return Receipt{}, classify(ctx, op, err)
	}

	g.Log.Info("escrow call sent", map[string]interface{}{
		"txHash": tx.Hash().Hex(), "function": fn, "contractAddress": addr.Hex(),
	})

	rcpt, err := g.wait(ctx, op, tx)
	if err != nil {
		return Receipt{}, err
	}
	return toReceipt(tx, rcpt, addr), nil
}

func (g *EthGateway) ReadStatus(ctx context.Context, contractAddress string) (ContractStatus, error) {
	if !common.IsHexAddress(contractAddress) {
		return ContractStatus{}, apperror.Ledger(apperror.CodeLedgerRejected, "read", fmt.Errorf("invalid contract address %q", contractAddress))
	}
	bound := bind.NewBoundContract(common.HexToAddress(contractAddress), g.Artifact.ABI, g.Backend, g.Backend, g.Backend)
	opts := &bind.CallOpts{Context: ctx}

	call := func(fn string) (interface{}, error) {
		var out []interface{}
		if err := bound.Call(opts, &out, fn); err != nil {
			return nil, classify(ctx, "read", fmt.Errorf("%s(): %w", fn, err))
		}
		if len(out) == 0 {
			return nil, apperror.Ledger(apperror.CodeLedgerRejected, "read", fmt.Errorf("%s() returned nothing", fn))
		}
		return out[0], nil
	}

	var st ContractStatus
	v, err := call("getProjectStatus")
	if err != nil {
		return st, err
	}
	st.Status = fmt.Sprint(v)

	if v, err = call("getContractBalance"); err != nil {
		return st, err
	}
	if wei, ok := v.(*big.Int); ok {
		st.Balance = WeiToEther(wei)
	}

	if v, err = call("employer"); err != nil {
		return st, err
	}
	if a, ok := v.(common.Address); ok {
		st.Employer = a.Hex()
	}

	if v, err = call("freelancer"); err != nil {
		return st, err
	}
	if a, ok := v.(common.Address); ok {
		st.Freelancer = a.Hex()
	}

	if v, err = call("isCompleted"); err != nil {
		return st, err
	}
	st.Completed, _ = v.(bool)

	if v, err = call("isPaid"); err != nil {
		return st, err
	}
	st.Paid, _ = v.(bool)

	return st, nil
}

func (g *EthGateway) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, apperror.Validation("invalid wallet address")
	}
	wei, err := g.Backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, classify(ctx, "balance", err)
	}
	return WeiToEther(wei), nil
}

func (g *EthGateway) transactor(ctx context.Context, key *ecdsa.PrivateKey, gasPrice *big.Int) (*bind.TransactOpts, error) {
	id, err := g.chain(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, id)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.GasLimit = g.GasLimit
	opts.GasPrice = gasPrice
	return opts, nil
}

func (g *EthGateway) chain(ctx context.Context) (*big.Int, error) {
	g.chainMu.Lock()
	defer g.chainMu.Unlock()
	if g.chainID != nil {
		return g.chainID, nil
	}
	id, err := g.Backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	g.chainID = id
	return id, nil
}

// send holds the per-sender lock from nonce lookup until the transaction is submitted.
func (g *EthGateway) send(ctx context.Context, from common.Address, fn func() error) error {
	unlock, err := g.senders.Lock(ctx, from.Hex())
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (g *EthGateway) wait(ctx context.Context, op string, tx *types.Transaction) (*types.Receipt, error) {
	rcpt, err := bind.WaitMined(ctx, g.Backend, tx)
	if err != nil {
		return nil, classify(ctx, op, err).WithMetadata("txHash", tx.Hash().Hex())
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, apperror.Ledger(apperror.CodeLedgerRejected, op, errReverted).WithMetadata("txHash", tx.Hash().Hex())
	}
	return rcpt, nil
}

func toReceipt(tx *types.Transaction, rcpt *types.Receipt, addr common.Address) Receipt {
	r := Receipt{
		TxHash:          tx.Hash().Hex(),
		GasUsed:         rcpt.GasUsed,
		ContractAddress: addr.Hex(),
	}
	if rcpt.BlockNumber != nil {
		r.BlockNumber = rcpt.BlockNumber.Uint64()
	}
	return r
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	return key, nil
}

// classify maps a chain error onto a ledger code.
func classify(ctx context.Context, op string, err error) *apperror.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperror.Ledger(apperror.CodeLedgerTimeout, op, err)
	case errors.Is(err, errInsufficientFunds) || strings.Contains(msg, "insufficient funds"):
		return apperror.Ledger(apperror.CodeInsufficientFunds, op, err)
	case errors.Is(err, errReverted) || strings.Contains(msg, "revert") || strings.Contains(msg, "invalid opcode"):
		return apperror.Ledger(apperror.CodeLedgerRejected, op, err)
	}
	return apperror.Ledger(apperror.CodeLedgerUnavailable, op, err)
}

func EtherToWei(ether decimal.Decimal) *big.Int {
	return ether.Shift(18).BigInt()
}

func WeiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}
