package ledger

import (
	"errors"
	"fmt"

	"github.com/thetanav/bit-bridge/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// OperationError reports a rejected balance operation. The balance it carries
// is the unchanged balance at the time of the rejection.
type OperationError struct {
	Operation model.Operation
	Amount    uint64
	Balance   uint64
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %d sats (balance %d): %v", e.Operation, e.Amount, e.Balance, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Message renders the rejection the way it is shown to callers.
func (e *OperationError) Message() string {
	switch {
	case errors.Is(e.Err, ErrInsufficientBalance) && e.Operation == model.OperationLend:
		return "Insufficient balance to lend."
	case errors.Is(e.Err, ErrInsufficientBalance):
		return "Insufficient balance."
	case errors.Is(e.Err, ErrBalanceOverflow):
		return fmt.Sprintf("Cannot %s %d sats: balance would overflow.", e.Operation, e.Amount)
	}
	return e.Err.Error()
}
