package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a chart-of-accounts node with a running balance.
type Account struct {
	Base
	Code    string          `gorm:"uniqueIndex;not null"`
	Name    string          `gorm:"not null"`
	Balance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
}

func (Account) TableName() string { return "accounts" }

// Title is the closure receipt opened when a session is reconciled.
type Title struct {
	Base
	SessionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind        TitleKind       `gorm:"type:varchar(12);not null"`
	Status      TitleStatus     `gorm:"type:varchar(10);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Description string          `gorm:"not null"`
	IssuedAt    time.Time       `gorm:"not null"`

	Entries []Entry `gorm:"foreignKey:TitleID"`
}

func (Title) TableName() string { return "titles" }

// Entry is one tender form's share of a closure.
type Entry struct {
	Base
	TitleID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Form    TenderForm      `gorm:"type:varchar(10);not null"`
	Amount  decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	Movements []AccountMovement `gorm:"foreignKey:EntryID"`
}

func (Entry) TableName() string { return "entries" }

// AccountMovement is a signed leg; the legs of one entry sum to zero.
type AccountMovement struct {
	Base
	EntryID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Direction LegDirection    `gorm:"type:varchar(4);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time
}

func (AccountMovement) TableName() string { return "account_movements" }
