package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is created FINALIZED by commit and only mutated by cancellation or
// fiscal conversion.
type Sale struct {
	Base
	SessionID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	TerminalID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_sales_terminal_number"`
	OperatorID         uuid.UUID       `gorm:"type:uuid;not null"`
	CustomerID         *uuid.UUID      `gorm:"type:uuid"`
	TerminalSaleNumber int64           `gorm:"not null;uniqueIndex:uq_sales_terminal_number"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineDiscountTotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SaleDiscount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NetTotal           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AmountTendered     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Change             decimal.Decimal `gorm:"type:decimal(12,2);not null;column:change"`
	Status             SaleStatus      `gorm:"type:varchar(10);not null;index"`
	DocumentKind       DocumentKind    `gorm:"type:varchar(12);not null"`
	// DiscountAuthorizerID is set when a supervisor approved a discount.
	DiscountAuthorizerID *uuid.UUID `gorm:"type:uuid"`
	// Fiscal placeholders; no tax authority is contacted.
	FiscalKey          string `gorm:"type:varchar(60)"`
	FiscalQR           string
	CancelReason       string
	CancelAuthorizerID *uuid.UUID `gorm:"type:uuid"`
	CanceledAt         *time.Time
	ConvertedAt        *time.Time
	OpenedAt           time.Time `gorm:"not null"`
	CreatedAt          time.Time

	Lines   []SaleLine `gorm:"foreignKey:SaleID"`
	Tenders []Tender   `gorm:"foreignKey:SaleID"`
}

func (Sale) TableName() string { return "sales" }

// TotalDiscount is the sum of line and whole-sale discounts.
func (s *Sale) TotalDiscount() decimal.Decimal {
	return s.LineDiscountTotal.Add(s.SaleDiscount)
}

type SaleLine struct {
	Base
	SaleID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null"`
	Code         string          `gorm:"not null"`
	Description  string          `gorm:"not null"`
	Unit         string          `gorm:"type:varchar(6)"`
	Quantity     decimal.Decimal `gorm:"type:decimal(14,3);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (SaleLine) TableName() string { return "sale_lines" }

// Tender stores the amount handed over for one form; cash change is kept on
// the sale header.
type Tender struct {
	Base
	SaleID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Form         TenderForm      `gorm:"type:varchar(10);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CardType     *CardType       `gorm:"type:varchar(10)"`
	Installments *int
	NSU          string `gorm:"column:nsu"`
	Doc          string `gorm:"column:doc"`
}

func (Tender) TableName() string { return "tenders" }
