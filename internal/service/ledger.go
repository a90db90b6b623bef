package service

import (
	"context"
	"errors"

	"github.com/thetanav/bit-bridge/internal/core"
	"github.com/thetanav/bit-bridge/internal/ledger"
	"github.com/thetanav/bit-bridge/internal/metrics"
	"github.com/thetanav/bit-bridge/internal/model"
	"go.uber.org/zap"
)

var ErrAnonymousCaller = errors.New("anonymous caller")

type ledgerService struct {
	store   *ledger.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewLedgerService(store *ledger.Store, m *metrics.Metrics, logger *zap.Logger) core.LedgerService {
	return &ledgerService{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

func (s *ledgerService) GetBalance(_ context.Context, user model.Principal) uint64 {
	return s.store.Balance(user)
}

func (s *ledgerService) Deposit(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.apply(ctx, caller, model.OperationDeposit, amount, s.store.Deposit)
}

func (s *ledgerService) Withdraw(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.apply(ctx, caller, model.OperationWithdraw, amount, s.store.Withdraw)
}

func (s *ledgerService) Lend(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.apply(ctx, caller, model.OperationLend, amount, s.store.Lend)
}

func (s *ledgerService) Borrow(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error) {
	return s.apply(ctx, caller, model.OperationBorrow, amount, s.store.Borrow)
}

func (s *ledgerService) YieldFarm(_ context.Context, caller model.Principal) (string, error) {
	op := string(model.OperationYieldFarm)
	if caller.IsAnonymous() {
		s.metrics.ObserveOperation(op, metrics.OutcomeRejected, 0)
		return "", ErrAnonymousCaller
	}

	s.metrics.ObserveOperation(op, metrics.OutcomeOK, 0)
	s.logger.Debug("Yield farming called", zap.Stringer("principal", caller))
	return s.store.YieldFarm(), nil
}

func (s *ledgerService) apply(
	_ context.Context,
	caller model.Principal,
	op model.Operation,
	amount uint64,
	fn func(model.Principal, uint64) (model.Receipt, error),
) (model.Receipt, error) {
	if caller.IsAnonymous() {
		s.metrics.ObserveOperation(string(op), metrics.OutcomeRejected, amount)
		return model.Receipt{}, ErrAnonymousCaller
	}

	receipt, err := fn(caller, amount)
	if err != nil {
		outcome := metrics.OutcomeRejected
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			outcome = metrics.OutcomeInsufficient
		case errors.Is(err, ledger.ErrBalanceOverflow):
			outcome = metrics.OutcomeOverflow
		}
		s.metrics.ObserveOperation(string(op), outcome, amount)
		s.logger.Info("Ledger operation rejected",
			zap.Stringer("principal", caller),
			zap.String("operation", string(op)),
			zap.Uint64("amount", amount),
			zap.Error(err))
		return model.Receipt{}, err
	}

	s.metrics.ObserveOperation(string(op), metrics.OutcomeOK, amount)
	s.logger.Debug("Ledger operation applied",
		zap.Stringer("principal", caller),
		zap.String("operation", string(op)),
		zap.Uint64("amount", amount),
		zap.Uint64("balance", receipt.Balance))
	return receipt, nil
}
