package model

import "fmt"

type Operation string

const (
	OperationDeposit   Operation = "deposit"
	OperationWithdraw  Operation = "withdraw"
	OperationLend      Operation = "lend"
	OperationBorrow    Operation = "borrow"
	OperationYieldFarm Operation = "yield_farm"
)

// YieldFarmMessage is returned by every yield farming call.
const YieldFarmMessage = "Yield farming rewards distributed! (Simulated)"

// Receipt describes a balance mutation that went through.
type Receipt struct {
	Operation Operation `json:"operation"`
	Amount    uint64    `json:"amount"`
	Balance   uint64    `json:"balance"`
}

// Message renders the receipt the way it is shown to callers.
func (r Receipt) Message() string {
	switch r.Operation {
	case OperationDeposit:
		return fmt.Sprintf("Deposited %d sats. New balance: %d", r.Amount, r.Balance)
	case OperationWithdraw:
		return fmt.Sprintf("Withdrew %d sats. New balance: %d", r.Amount, r.Balance)
	case OperationLend:
		return fmt.Sprintf("Lent %d sats. (Simulated)", r.Amount)
	case OperationBorrow:
		return fmt.Sprintf("Borrowed %d sats. (Simulated)", r.Amount)
	case OperationYieldFarm:
		return YieldFarmMessage
	}
	return fmt.Sprintf("%s %d sats. New balance: %d", r.Operation, r.Amount, r.Balance)
}
