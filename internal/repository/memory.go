package repository

import (
	"context"
	"sync"
	"time"

	"github.com/thetanav/bit-bridge/internal/model"
)

type memoryUserRepository struct {
	mu          sync.RWMutex
	byLogin     map[string]model.User
	byPrincipal map[model.Principal]string
}

// NewMemoryUserRepository keeps identities in process memory; they are lost
// on restart together with the balances.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byLogin:     make(map[string]model.User),
		byPrincipal: make(map[model.Principal]string),
	}
}

func (r *memoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byLogin[user.Login]; ok {
		return ErrLoginTaken
	}
	user.CreatedAt = time.Now()
	r.byLogin[user.Login] = *user
	r.byPrincipal[user.Principal] = user.Login
	return nil
}

func (r *memoryUserRepository) GetByLogin(_ context.Context, login string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byLogin[login]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *memoryUserRepository) GetByPrincipal(_ context.Context, principal model.Principal) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	login, ok := r.byPrincipal[principal]
	if !ok {
		return nil, nil
	}
	user := r.byLogin[login]
	return &user, nil
}

func (r *memoryUserRepository) Ping(context.Context) error {
	return nil
}
