package model

import (
	"time"

	"github.com/google/uuid"
)

type Company struct {
	Base
	Name  string `gorm:"not null"`
	TaxID string `gorm:"type:varchar(20);not null"`
}

func (Company) TableName() string { return "companies" }

type StoreLocation struct {
	Base
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"not null"`
	// TaxID is optional; the company tax id is used when empty.
	TaxID string `gorm:"type:varchar(20)"`
}

func (StoreLocation) TableName() string { return "store_locations" }

type Warehouse struct {
	Base
	Name string `gorm:"not null"`
}

func (Warehouse) TableName() string { return "warehouses" }

// Terminal is the registered POS station, keyed by the OS host name.
// Every link column is nullable so a half-configured terminal can be detected
// at binding time instead of failing mid-sale.
type Terminal struct {
	Base
	Host               string     `gorm:"not null;index"`
	Name               string     `gorm:"not null"`
	Active             bool       `gorm:"not null;default:true"`
	CompanyID          uuid.UUID  `gorm:"type:uuid;not null"`
	StoreLocationID    uuid.UUID  `gorm:"type:uuid;not null"`
	DefaultWarehouseID *uuid.UUID `gorm:"type:uuid;column:warehouse_id"`
	TillAccountID      *uuid.UUID `gorm:"type:uuid;column:till_account_id"`
	DestCashID         *uuid.UUID `gorm:"type:uuid;column:dest_cash_id"`
	DestCardID         *uuid.UUID `gorm:"type:uuid;column:dest_card_id"`
	DestPixID          *uuid.UUID `gorm:"type:uuid;column:dest_pix_id"`
	DestOtherID        *uuid.UUID `gorm:"type:uuid;column:dest_other_id"`
	// NextSaleCounter holds the last assigned terminal sale number.
	NextSaleCounter int64  `gorm:"not null;default:0;column:next_sale_counter"`
	AllowNonFiscal  bool   `gorm:"not null;default:false;column:allow_non_fiscal"`
	PrinterName     string `gorm:"column:printer_name"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Terminal) TableName() string { return "terminals" }

// DestinationFor returns the destination account linked to a tender form.
// VOUCHER drains into the OTHER destination.
func (t *Terminal) DestinationFor(form TenderForm) *uuid.UUID {
	switch form {
	case FormCash:
		return t.DestCashID
	case FormCard:
		return t.DestCardID
	case FormPix:
		return t.DestPixID
	default:
		return t.DestOtherID
	}
}

type Customer struct {
	Base
	Name  string `gorm:"not null"`
	TaxID string `gorm:"type:varchar(20)"`
}

func (Customer) TableName() string { return "customers" }
