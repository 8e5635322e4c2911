package storage

import (
	"context"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/services/auth/account"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "account not found")

// ErrEmailTaken indicates another account already uses the email.
var ErrEmailTaken = apperrors.New(apperrors.CodeAccountEmailTaken, "email is already registered")

// AccountStore persists portal accounts.
type AccountStore interface {
	// CreateAccount inserts a new account, failing with ErrEmailTaken on a
	// duplicate email.
	CreateAccount(ctx context.Context, a account.Account) error
	GetAccount(ctx context.Context, accountID string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	ListAccounts(ctx context.Context) ([]account.Account, error)
	SetAccountRoles(ctx context.Context, accountID string, roles []string) (account.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
}
