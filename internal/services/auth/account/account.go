// Package account models portal accounts: registration input, password
// hashing and role assignment.
package account

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/id"
	"github.com/louisbranch/tapestry/internal/platform/requestctx"
)

// Known roles.
const (
	RolePlayer = "player"
	RoleAdmin  = requestctx.RoleAdmin
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "invalid email or password")
	// ErrInvalidRole indicates a role outside the known set.
	ErrInvalidRole = apperrors.New(apperrors.CodeAccountInvalidRole, "unknown role")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Account is a registered portal user.
type Account struct {
	ID              string
	Email           string
	FullName        string
	PasswordHash    []byte
	Roles           []string
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasRole reports whether the account carries role.
func (a Account) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// RegisterInput is the payload of POST /auth/register.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName,omitempty" validate:"max=120"`
	// FirstName and LastName are joined into FullName when it is empty.
	FirstName string `json:"firstName,omitempty" validate:"max=60"`
	LastName  string `json:"lastName,omitempty" validate:"max=60"`
}

// LoginInput is the payload of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateInput runs struct validation and reports the first failing field.
func ValidateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return apperrors.WithMetadata(apperrors.CodeAccountInvalidInput, "invalid account input", map[string]string{
			"field": first.Field(),
			"rule":  first.Tag(),
		})
	}
	return apperrors.Wrap(apperrors.CodeAccountInvalidInput, "invalid account input", err)
}

// Create validates input and builds a player account with a bcrypt password
// hash.
func Create(input RegisterInput, now func() time.Time, idGenerator func() (string, error)) (Account, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	input.Email = NormalizeEmail(input.Email)
	if strings.TrimSpace(input.FullName) == "" {
		input.FullName = input.FirstName + " " + input.LastName
	}
	input.FullName = strings.Join(strings.Fields(norm.NFC.String(input.FullName)), " ")
	if err := ValidateInput(input); err != nil {
		return Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	accountID, err := idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}
	createdAt := now().UTC()
	return Account{
		ID:           accountID,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		Roles:        []string{RolePlayer},
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// CheckPassword compares password with the stored hash.
func (a Account) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NormalizeRoles lower-cases, de-duplicates and sorts roles, rejecting
// unknown ones. An empty result defaults to player.
func NormalizeRoles(roles []string) ([]string, error) {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if role != RolePlayer && role != RoleAdmin {
			return nil, apperrors.WithMetadata(ErrInvalidRole.Code, ErrInvalidRole.Message, map[string]string{"role": role})
		}
		if !slices.Contains(out, role) {
			out = append(out, role)
		}
	}
	if len(out) == 0 {
		out = append(out, RolePlayer)
	}
	slices.Sort(out)
	return out, nil
}
