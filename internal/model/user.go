package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is an operator or supervisor able to sign in on a terminal.
type User struct {
	Base
	Username     string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	// MaxDiscountPercent is the ceiling above which any discount escalates.
	MaxDiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Active             bool            `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Permissions []UserPermission `gorm:"foreignKey:UserID"`
}

func (User) TableName() string { return "users" }

// Grant is the two-value permission state stored per field key.
type Grant string

const (
	GrantNone  Grant = "NONE"
	GrantTotal Grant = "TOTAL"
)

// PermissionKey is the closed set of privileged terminal operations.
type PermissionKey string

const (
	PermOpenCash            PermissionKey = "open_cash"
	PermCloseCash           PermissionKey = "close_cash"
	PermCloseWithDivergence PermissionKey = "close_with_divergence"
	PermCashDrop            PermissionKey = "cash_drop"
	PermCashInfusion        PermissionKey = "cash_infusion"
	PermLineDiscount        PermissionKey = "line_discount"
	PermSaleDiscount        PermissionKey = "sale_discount"
	PermDeleteLine          PermissionKey = "delete_line"
	PermCancelCurrent       PermissionKey = "cancel_current"
	PermCancelFinalized     PermissionKey = "cancel_finalized"
	PermNonFiscalSale       PermissionKey = "non_fiscal_sale"
	PermRecallSale          PermissionKey = "recall_sale"
)

// PermissionKeys lists every known key.
func PermissionKeys() []PermissionKey {
	return []PermissionKey{
		PermOpenCash,
		PermCloseCash,
		PermCloseWithDivergence,
		PermCashDrop,
		PermCashInfusion,
		PermLineDiscount,
		PermSaleDiscount,
		PermDeleteLine,
		PermCancelCurrent,
		PermCancelFinalized,
		PermNonFiscalSale,
		PermRecallSale,
	}
}

// ParsePermissionKey rejects keys outside the closed set.
func ParsePermissionKey(s string) (PermissionKey, error) {
	for _, k := range PermissionKeys() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown permission key %q", s)
}

// MovementPermission maps a cash movement kind to the key that gates it.
func MovementPermission(kind MovementKind) PermissionKey {
	if kind == MovementDrop {
		return PermCashDrop
	}
	return PermCashInfusion
}

// UserPermission is one (user, field_key) → grant row.
type UserPermission struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_user_permission"`
	FieldKey string    `gorm:"type:varchar(40);not null;uniqueIndex:uq_user_permission"`
	Grant    Grant     `gorm:"type:varchar(10);not null;default:'NONE';column:access"`
}

func (UserPermission) TableName() string { return "user_permissions" }
