package service

import (
	"context"
	"errors"
	"testing"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── In-memory UserRepository ─────────────────────────────────────────────────

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username && u.Active {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) SetPermission(_ context.Context, userID uuid.UUID, key model.PermissionKey, grant model.Grant) error {
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range u.Permissions {
		if u.Permissions[i].FieldKey == string(key) {
			u.Permissions[i].Grant = grant
			return nil
		}
	}
	u.Permissions = append(u.Permissions, model.UserPermission{UserID: userID, FieldKey: string(key), Grant: grant})
	return nil
}

func addUser(t *testing.T, repo *fakeUserRepo, username, password string, ceiling int64, keys ...model.PermissionKey) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		Username:           username,
		Name:               username,
		PasswordHash:       string(hash),
		MaxDiscountPercent: decimal.NewFromInt(ceiling),
		Active:             true,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	for _, k := range keys {
		require.NoError(t, repo.SetPermission(context.Background(), u.ID, k, model.GrantTotal))
	}
	return u
}

func newPermissionFixture(t *testing.T) (PermissionService, *Operator, *model.User) {
	t.Helper()
	repo := newFakeUserRepo()
	cashier := addUser(t, repo, "cashier", "1234", 5, model.PermLineDiscount, model.PermOpenCash)
	sup := addUser(t, repo, "supervisor", "9999", 100, model.PermissionKeys()...)
	addUser(t, repo, "trainee", "0000", 0)
	svc := NewPermissionService(repo)
	op, err := svc.Load(context.Background(), cashier.ID)
	require.NoError(t, err)
	return svc, op, sup
}

func supervisorCreds(username, password string) Escalator {
	return func(context.Context, model.PermissionKey) (*Credentials, bool) {
		return &Credentials{Username: username, Password: password}, true
	}
}

// ── Authenticate / Load ──────────────────────────────────────────────────────

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newPermissionFixture(t)
	ctx := context.Background()

	op, err := svc.Authenticate(ctx, "cashier", "1234")
	require.NoError(t, err)
	assert.True(t, op.Granted(model.PermOpenCash))
	assert.False(t, op.Granted(model.PermCancelFinalized))

	_, err = svc.Authenticate(ctx, "cashier", "wrong")
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost", "1234")
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeInvalidCredentials)
}

func TestLoad_InactiveUserIsRejected(t *testing.T) {
	repo := newFakeUserRepo()
	u := addUser(t, repo, "gone", "1234", 0)
	u.Active = false

	_, err := NewPermissionService(repo).Load(context.Background(), u.ID)
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeInvalidCredentials)
}

func TestNewOperator_RejectsUnknownKeys(t *testing.T) {
	u := &model.User{Username: "x", Permissions: []model.UserPermission{{FieldKey: "launch_rockets", Grant: model.GrantTotal}}}
	_, err := NewOperator(u)
	assert.Error(t, err)

	u.Permissions = []model.UserPermission{{FieldKey: string(model.PermOpenCash), Grant: "PARTIAL"}}
	_, err = NewOperator(u)
	assert.Error(t, err)
}

// ── Require ──────────────────────────────────────────────────────────────────

func TestRequire_GrantedNeverPrompts(t *testing.T) {
	svc, op, _ := newPermissionFixture(t)
	auth, err := svc.Require(context.Background(), op, model.PermOpenCash, neverPrompted(t))
	require.NoError(t, err)
	assert.False(t, auth.Escalated())
}

func TestRequire_NotGrantedWithoutPromptIsDenied(t *testing.T) {
	svc, op, _ := newPermissionFixture(t)
	_, err := svc.Require(context.Background(), op, model.PermCancelFinalized, nil)
	e := requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeDenied)
	assert.Equal(t, string(model.PermCancelFinalized), e.Key)
}

func TestRequire_Escalation(t *testing.T) {
	svc, op, sup := newPermissionFixture(t)
	ctx := context.Background()
	key := model.PermCancelFinalized

	_, err := svc.Require(ctx, op, key, promptDismissed())
	e := requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeEscalationAborted)
	assert.Equal(t, string(key), e.Key)

	_, err = svc.Require(ctx, op, key, supervisorCreds("supervisor", "bad"))
	e = requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeInvalidCredentials)
	assert.Equal(t, string(key), e.Key)

	// A second cashier without the key cannot authorize it.
	_, err = svc.Require(ctx, op, key, supervisorCreds("trainee", "0000"))
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeDenied)

	auth, err := svc.Require(ctx, op, key, supervisorCreds("supervisor", "9999"))
	require.NoError(t, err)
	require.True(t, auth.Escalated())
	assert.Equal(t, sup.ID, *auth.AuthorizerID)
}

// ── RequireDiscount ──────────────────────────────────────────────────────────

func TestRequireDiscount_CeilingBoundary(t *testing.T) {
	svc, op, sup := newPermissionFixture(t)
	ctx := context.Background()
	base := dec("100.00") // 5% ceiling = 5.00

	auth, err := svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("5.00"), base, nil, neverPrompted(t))
	require.NoError(t, err, "exactly at the ceiling needs no supervisor")
	assert.False(t, auth.Escalated())

	_, err = svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("5.01"), base, nil, nil)
	e := requireCode(t, err, apierror.CategoryValidation, apierror.CodeDiscountExceedsCeiling)
	assert.Equal(t, string(model.PermLineDiscount), e.Key)

	auth, err = svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("5.01"), base, nil, supervisorCreds("supervisor", "9999"))
	require.NoError(t, err)
	assert.Equal(t, sup.ID, *auth.AuthorizerID)
}

func TestRequireDiscount_CeilingIsNotRounded(t *testing.T) {
	svc, op, _ := newPermissionFixture(t)
	ctx := context.Background()
	base := dec("33.33") // 5% is 1.6665

	// 1.67 is 5.0105% of the line.
	_, err := svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("1.67"), base, nil, nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeDiscountExceedsCeiling)

	auth, err := svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("1.66"), base, nil, neverPrompted(t))
	require.NoError(t, err)
	assert.False(t, auth.Escalated())

	// Typed as 5%, the same 1.67 is within the ceiling.
	auth, err = svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("1.67"), base, decp("5"), neverPrompted(t))
	require.NoError(t, err)
	assert.False(t, auth.Escalated())

	_, err = svc.RequireDiscount(ctx, op, model.PermLineDiscount, dec("1.70"), base, decp("5.1"), nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeDiscountExceedsCeiling)
}

func TestRequireDiscount_UngrantedKeyEscalatesUnderCeiling(t *testing.T) {
	svc, op, _ := newPermissionFixture(t)
	_, err := svc.RequireDiscount(context.Background(), op, model.PermSaleDiscount, dec("1.00"), dec("100"), nil, nil)
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeDenied)
}

func TestEngineErrors_MatchBySentinel(t *testing.T) {
	svc, op, _ := newPermissionFixture(t)
	_, err := svc.Require(context.Background(), op, model.PermCancelFinalized, promptDismissed())
	assert.True(t, errors.Is(err, apierror.ErrEscalationAborted))
	assert.False(t, errors.Is(err, apierror.ErrDenied))
}
