package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockMovementKind string

const (
	StockSale          StockMovementKind = "SALE"
	StockCancelRestock StockMovementKind = "CANCEL_RESTOCK"
)

// StockMovement records one change to a stock row and the sale behind it.
// Delta is negative when goods leave the warehouse.
type StockMovement struct {
	Base
	ProductID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	WarehouseID uuid.UUID         `gorm:"type:uuid;not null"`
	Kind        StockMovementKind `gorm:"type:varchar(16);not null"`
	Delta       decimal.Decimal   `gorm:"type:decimal(14,3);not null"`
	SaleID      uuid.UUID         `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time
}

func (StockMovement) TableName() string { return "stock_movements" }
