package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tapestry/internal/services/auth/account"
	"github.com/louisbranch/tapestry/internal/services/auth/storage"
	"github.com/louisbranch/tapestry/internal/services/auth/storage/sqlite/migrations"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements storage.AccountStore over SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.AccountStore = (*Store)(nil)

// Open opens the auth database at path and applies bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(ctx, path, migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

const accountColumns = `id, email, full_name, password_hash, roles, email_verified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (account.Account, error) {
	var (
		a         account.Account
		roles     string
		verified  int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.PasswordHash, &roles, &verified, &createdAt, &updatedAt); err != nil {
		return account.Account{}, err
	}
	if err := json.Unmarshal([]byte(roles), &a.Roles); err != nil {
		return account.Account{}, fmt.Errorf("decode roles: %w", err)
	}
	a.IsEmailVerified = verified != 0
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func encodeRoles(roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	return string(raw), nil
}

// CreateAccount inserts a.
func (s *Store) CreateAccount(ctx context.Context, a account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("email is required")
	}
	roles, err := encodeRoles(a.Roles)
	if err != nil {
		return err
	}
	verified := 0
	if a.IsEmailVerified {
		verified = 1
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.FullName, a.PasswordHash, roles, verified, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "accounts.email") {
			return storage.ErrEmailTaken
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, column string) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// GetAccount loads one account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (account.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetAccountByEmail loads one account by normalized email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, account.NormalizeEmail(email))
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// ListAccounts returns every account, oldest first.
func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []account.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// SetAccountRoles replaces the account's roles and returns the updated record.
func (s *Store) SetAccountRoles(ctx context.Context, accountID string, roles []string) (account.Account, error) {
	encoded, err := encodeRoles(roles)
	if err != nil {
		return account.Account{}, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE accounts SET roles = ?, updated_at = ? WHERE id = ?`,
		encoded, toMillis(s.now()), accountID,
	)
	if err != nil {
		return account.Account{}, fmt.Errorf("set account roles: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return account.Account{}, fmt.Errorf("set account roles: %w", err)
	} else if n == 0 {
		return account.Account{}, storage.ErrNotFound
	}
	return s.GetAccount(ctx, accountID)
}

// DeleteAccount removes one account.
func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
