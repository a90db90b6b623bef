// Package ledger keeps the per-principal sats balances in process memory.
package ledger

import (
	"math/bits"
	"sync"

	"github.com/thetanav/bit-bridge/internal/model"
)

// Store maps principals to balances. A single mutex serializes every
// operation, so each read-check-write runs to completion before the next.
type Store struct {
	mu       sync.Mutex
	balances map[model.Principal]uint64
}

func NewStore() *Store {
	return &Store{balances: make(map[model.Principal]uint64)}
}

// Balance returns the stored balance, or 0 for a principal never seen.
func (s *Store) Balance(user model.Principal) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[user]
}

// Accounts returns the number of balance entries.
func (s *Store) Accounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.balances)
}

func (s *Store) Deposit(caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.credit(caller, model.OperationDeposit, amount)
}

func (s *Store) Withdraw(caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.debit(caller, model.OperationWithdraw, amount)
}

// Lend removes amount from the caller's balance. Nothing records who it was
// lent to.
func (s *Store) Lend(caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.debit(caller, model.OperationLend, amount)
}

// Borrow adds amount to the caller's balance with no collateral or repayment
// obligation.
func (s *Store) Borrow(caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.credit(caller, model.OperationBorrow, amount)
}

// YieldFarm distributes nothing.
func (s *Store) YieldFarm() string {
	return model.YieldFarmMessage
}

func (s *Store) credit(caller model.Principal, op model.Operation, amount uint64) (model.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[caller]
	s.balances[caller] = balance

	sum, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		return model.Receipt{}, &OperationError{Operation: op, Amount: amount, Balance: balance, Err: ErrBalanceOverflow}
	}

	s.balances[caller] = sum
	return model.Receipt{Operation: op, Amount: amount, Balance: sum}, nil
}

func (s *Store) debit(caller model.Principal, op model.Operation, amount uint64) (model.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[caller]
	s.balances[caller] = balance

	if balance < amount {
		return model.Receipt{}, &OperationError{Operation: op, Amount: amount, Balance: balance, Err: ErrInsufficientBalance}
	}

	balance -= amount
	s.balances[caller] = balance
	return model.Receipt{Operation: op, Amount: amount, Balance: balance}, nil
}
