package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	Base
	Code        string `gorm:"uniqueIndex;not null"`
	Description string `gorm:"not null"`
	Unit        string `gorm:"type:varchar(6);not null;default:'UN'"`
	Active      bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Codes []ProductCode `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string { return "products" }

// ProductCode is an alternative or scan code pointing at a product.
type ProductCode struct {
	Base
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
	Code      string    `gorm:"not null;index"`
	Kind      CodeKind  `gorm:"type:varchar(12);not null"`
}

func (ProductCode) TableName() string { return "product_codes" }

// PriceTable is bound to a store identifier; at most one is active per identifier.
type PriceTable struct {
	Base
	StoreIdentifier string `gorm:"type:varchar(20);not null;index"`
	Name            string `gorm:"not null"`
	Active          bool   `gorm:"not null;default:false"`
}

func (PriceTable) TableName() string { return "price_tables" }

type PriceTableItem struct {
	Base
	PriceTableID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_price_item"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_price_item"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (PriceTableItem) TableName() string { return "price_table_items" }

// StockRow is the on-hand quantity of a product in a warehouse. Quantities may
// go negative: oversell is recorded, not prevented.
type StockRow struct {
	Base
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_stock_product_warehouse"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_stock_product_warehouse"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0"`
}

func (StockRow) TableName() string { return "stock" }
