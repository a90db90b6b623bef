package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/thetanav/bit-bridge/internal/model"
)

var ErrLoginTaken = errors.New("login already taken")

// UserRepository stores the identities callers authenticate as. Balances are
// never stored here.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByPrincipal(ctx context.Context, principal model.Principal) (*model.User, error)
	Ping(ctx context.Context) error
}

type userRepository struct {
	db *Database
}

func NewUserRepository(db *Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (principal, login, password_hash) VALUES ($1, $2, $3) RETURNING created_at`
	err := r.db.db.QueryRowContext(ctx, query, user.Principal.String(), user.Login, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrLoginTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	query := `SELECT principal, login, password_hash, created_at FROM users WHERE login = $1`
	return r.scanOne(r.db.db.QueryRowContext(ctx, query, login))
}

func (r *userRepository) GetByPrincipal(ctx context.Context, principal model.Principal) (*model.User, error) {
	query := `SELECT principal, login, password_hash, created_at FROM users WHERE principal = $1`
	return r.scanOne(r.db.db.QueryRowContext(ctx, query, principal.String()))
}

func (r *userRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *userRepository) scanOne(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var principal string
	err := row.Scan(&principal, &user.Login, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	id, err := uuid.Parse(principal)
	if err != nil {
		return nil, fmt.Errorf("stored principal %q: %w", principal, err)
	}
	user.Principal = model.Principal(id)
	return user, nil
}
