package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Method is a state-changing escrow contract call.
type Method string

const (
	MethodComplete Method = "complete"
	MethodRelease  Method = "release"
)

// contract function names behind each Method
var contractFunctions = map[Method]string{
	MethodComplete: "completeWork",
	MethodRelease:  "releasePayment",
}

type Account struct {
	Address    string
	PrivateKey string // hex, no 0x prefix
}

// Receipt describes a confirmed transaction.
type Receipt struct {
	TxHash          string `json:"txHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	GasUsed         uint64 `json:"gasUsed"`
	ContractAddress string `json:"contractAddress"`
}

type ContractStatus struct {
	Status     string          `json:"status"`
	Balance    decimal.Decimal `json:"balance"` // ether
	Employer   string          `json:"employer"`
	Freelancer string          `json:"freelancer"`
	Completed  bool            `json:"is_completed"`
	Paid       bool            `json:"is_paid"`
}

// Gateway is the boundary to the chain. State-changing calls return only after
// the transaction is mined, or fail with an apperror ledger code.
type Gateway interface {
	CreateAccount(ctx context.Context) (Account, error)
	DeployEscrow(ctx context.Context, employerKey, freelancerAddress, description string, amount decimal.Decimal) (Receipt, error)
	Invoke(ctx context.Context, contractAddress string, method Method, signerKey string) (Receipt, error)
	ReadStatus(ctx context.Context, contractAddress string) (ContractStatus, error)
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}
