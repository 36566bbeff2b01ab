package service

import (
	"context"
	"errors"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/config"
	"posterminal/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "kind" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

var errInvalidRefresh = errors.New("refresh token is invalid or expired")

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
}

type authService struct {
	perms   PermissionService
	cash    CashService
	binding *Binding
	cfg     *config.Config
}

// NewAuthService accepts a nil binding: operators can still sign in while the
// terminal is unbound, they just get no session.
func NewAuthService(perms PermissionService, cash CashService, binding *Binding, cfg *config.Config) AuthService {
	return &authService{perms: perms, cash: cash, binding: binding, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	op, err := s.perms.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, op)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidRefresh
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["kind"] != TokenKindRefresh {
		return nil, errInvalidRefresh
	}
	userIDStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errInvalidRefresh
	}
	op, err := s.perms.Load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, op)
}

func (s *authService) issue(ctx context.Context, op *Operator) (*dto.LoginResponse, error) {
	access, err := s.generateToken(op, TokenKindAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, apierror.TransactionFailed(err)
	}
	refresh, err := s.generateToken(op, TokenKindRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, apierror.TransactionFailed(err)
	}

	resp := &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		Operator: dto.OperatorResponse{
			ID:                 op.ID.String(),
			Username:           op.Username,
			Name:               op.Name,
			MaxDiscountPercent: op.MaxDiscountPercent.StringFixed(2),
		},
	}
	if s.binding != nil {
		resp.Terminal = s.binding.Terminal.Name
		sess, err := s.cash.FindOpen(ctx, s.binding, op.ID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			id := sess.ID.String()
			resp.SessionID = &id
		}
	}
	return resp, nil
}

func (s *authService) generateToken(op *Operator, kind string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  op.ID.String(),
		"username": op.Username,
		"kind":     kind,
		"exp":      now.Add(duration).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
