package core

import (
	"context"

	"github.com/thetanav/bit-bridge/internal/model"
)

type (
	AuthService interface {
		Register(ctx context.Context, login, password string) (*model.User, string, error)
		Login(ctx context.Context, login, password string) (*model.User, string, error)
		ValidateToken(ctx context.Context, tokenString string) (model.Principal, error)
	}

	LedgerService interface {
		GetBalance(ctx context.Context, user model.Principal) uint64
		Deposit(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error)
		Withdraw(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error)
		Lend(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error)
		Borrow(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error)
		YieldFarm(ctx context.Context, caller model.Principal) (string, error)
	}
)
