package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashSession is an operator's shift on a terminal.
// Expected, Counted and Difference are only set on close.
type CashSession struct {
	Base
	TerminalID   uuid.UUID        `gorm:"type:uuid;not null;index:idx_sessions_terminal_operator"`
	OperatorID   uuid.UUID        `gorm:"type:uuid;not null;index:idx_sessions_terminal_operator"`
	InitialFloat decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	Status       SessionStatus    `gorm:"type:varchar(10);not null;default:'OPEN'"`
	Expected     *decimal.Decimal `gorm:"type:decimal(12,2);column:expected"`
	Counted      *decimal.Decimal `gorm:"type:decimal(12,2);column:counted"`
	Difference   *decimal.Decimal `gorm:"type:decimal(12,2);column:difference"`
	AuthorizerID *uuid.UUID       `gorm:"type:uuid"`
	OpenedAt     time.Time        `gorm:"not null"`
	ClosedAt     *time.Time

	Movements []CashMovement `gorm:"foreignKey:SessionID"`
}

func (CashSession) TableName() string { return "sessions" }

func (s *CashSession) IsOpen() bool { return s.Status == SessionOpen }

// CashMovement is an immutable drop or infusion recorded against a session.
type CashMovement struct {
	Base
	SessionID    uuid.UUID       `gorm:"type:uuid;not null;index;column:session_id"`
	Kind         MovementKind    `gorm:"type:varchar(10);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason       string          `gorm:"not null"`
	OperatorID   uuid.UUID       `gorm:"type:uuid;not null"`
	AuthorizerID *uuid.UUID      `gorm:"type:uuid;column:authorizer_id"`
	CreatedAt    time.Time       `gorm:"not null"`
}

func (CashMovement) TableName() string { return "movements" }

// Signed returns the movement's effect on the cash drawer.
func (m CashMovement) Signed() decimal.Decimal {
	if m.Kind == MovementDrop {
		return m.Amount.Neg()
	}
	return m.Amount
}
