package service

import (
	"context"
	"fmt"

	"posterminal/internal/apierror"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Credentials are what a supervisor types into the escalation prompt.
type Credentials struct {
	Username string
	Password string
}

// Escalator is supplied by the shell. It is called with the key that was
// denied and returns the supervisor's credentials, or ok=false when the prompt
// was dismissed.
type Escalator func(ctx context.Context, key model.PermissionKey) (creds *Credentials, ok bool)

// Authorization is the outcome of a successful Require. AuthorizerID is set
// only when a supervisor approved.
type Authorization struct {
	Key          model.PermissionKey
	AuthorizerID *uuid.UUID
}

func (a Authorization) Escalated() bool { return a.AuthorizerID != nil }

// Operator is a signed-in user with parsed permissions.
type Operator struct {
	ID                 uuid.UUID
	Username           string
	Name               string
	MaxDiscountPercent decimal.Decimal
	grants             map[model.PermissionKey]model.Grant
}

func (o *Operator) Granted(key model.PermissionKey) bool {
	return o.grants[key] == model.GrantTotal
}

// ExceedsCeiling reports whether a discount goes past the operator's ceiling.
// A discount entered as a percentage is compared as given; an absolute amount
// is compared by its unrounded share of base.
func (o *Operator) ExceedsCeiling(amount, base decimal.Decimal, percent *decimal.Decimal) bool {
	if percent != nil {
		return percent.GreaterThan(o.MaxDiscountPercent)
	}
	return amount.Mul(decimal.NewFromInt(100)).GreaterThan(base.Mul(o.MaxDiscountPercent))
}

// NewOperator parses the user's permission rows. Unknown keys are rejected.
func NewOperator(u *model.User) (*Operator, error) {
	op := &Operator{
		ID:                 u.ID,
		Username:           u.Username,
		Name:               u.Name,
		MaxDiscountPercent: u.MaxDiscountPercent,
		grants:             make(map[model.PermissionKey]model.Grant, len(u.Permissions)),
	}
	for _, p := range u.Permissions {
		key, err := model.ParsePermissionKey(p.FieldKey)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", u.Username, err)
		}
		switch p.Grant {
		case model.GrantNone, model.GrantTotal:
		default:
			return nil, fmt.Errorf("user %s: key %s has unknown grant %q", u.Username, key, p.Grant)
		}
		op.grants[key] = p.Grant
	}
	return op, nil
}

type PermissionService interface {
	// Authenticate verifies a username and password against the user store.
	Authenticate(ctx context.Context, username, password string) (*Operator, error)
	Load(ctx context.Context, userID uuid.UUID) (*Operator, error)
	// Require answers for key: granted by the operator, granted by an
	// escalated supervisor, or an Authorization error.
	Require(ctx context.Context, op *Operator, key model.PermissionKey, escalate Escalator) (Authorization, error)
	// RequireDiscount is Require plus the ceiling: a discount above the
	// operator's ceiling on base escalates even when key is granted. percent
	// is the percentage the operator typed, nil for an absolute amount.
	RequireDiscount(ctx context.Context, op *Operator, key model.PermissionKey, amount, base decimal.Decimal, percent *decimal.Decimal, escalate Escalator) (Authorization, error)
}

type permissionService struct {
	users repository.UserRepository
}

func NewPermissionService(users repository.UserRepository) PermissionService {
	return &permissionService{users: users}
}

func (s *permissionService) Authenticate(ctx context.Context, username, password string) (*Operator, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if isNotFound(err) {
		return nil, apierror.InvalidCredentials("")
	}
	if err != nil {
		return nil, persistence(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apierror.InvalidCredentials("")
	}
	return NewOperator(u)
}

func (s *permissionService) Load(ctx context.Context, userID uuid.UUID) (*Operator, error) {
	u, err := s.users.FindByID(ctx, userID)
	if isNotFound(err) || (err == nil && !u.Active) {
		return nil, apierror.InvalidCredentials("")
	}
	if err != nil {
		return nil, persistence(err)
	}
	return NewOperator(u)
}

func (s *permissionService) Require(ctx context.Context, op *Operator, key model.PermissionKey, escalate Escalator) (Authorization, error) {
	if op.Granted(key) {
		return Authorization{Key: key}, nil
	}
	if escalate == nil {
		return Authorization{}, apierror.Denied(string(key))
	}
	return s.escalate(ctx, key, escalate)
}

func (s *permissionService) RequireDiscount(ctx context.Context, op *Operator, key model.PermissionKey, amount, base decimal.Decimal, percent *decimal.Decimal, escalate Escalator) (Authorization, error) {
	overCeiling := op.ExceedsCeiling(amount, base, percent)
	if op.Granted(key) && !overCeiling {
		return Authorization{Key: key}, nil
	}
	if escalate == nil {
		if overCeiling {
			return Authorization{}, &apierror.Error{
				Category: apierror.CategoryValidation,
				Code:     apierror.CodeDiscountExceedsCeiling,
				Key:      string(key),
				Message: fmt.Sprintf("discount %s exceeds ceiling %s%%",
					amount.StringFixed(2), op.MaxDiscountPercent.String()),
			}
		}
		return Authorization{}, apierror.Denied(string(key))
	}
	return s.escalate(ctx, key, escalate)
}

// escalate runs the credential challenge: the supervisor must authenticate and
// hold the same key.
func (s *permissionService) escalate(ctx context.Context, key model.PermissionKey, escalate Escalator) (Authorization, error) {
	creds, ok := escalate(ctx, key)
	if !ok || creds == nil {
		return Authorization{}, apierror.EscalationAborted(string(key))
	}
	sup, err := s.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		if e, ok := apierror.As(err); ok && e.Code == apierror.CodeInvalidCredentials {
			return Authorization{}, apierror.InvalidCredentials(string(key))
		}
		return Authorization{}, err
	}
	if !sup.Granted(key) {
		return Authorization{}, apierror.Denied(string(key))
	}
	log.Info().
		Str("key", string(key)).
		Str("authorizer_id", sup.ID.String()).
		Msg("escalation approved")
	id := sup.ID
	return Authorization{Key: key, AuthorizerID: &id}, nil
}
