package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the UUID primary key shared by every table. IDs are generated
// client-side so the same schema works on PostgreSQL and SQLite.
type Base struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// BeforeCreate assigns a fresh UUID when the caller did not set one.
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All returns every persisted entity, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Company{},
		&StoreLocation{},
		&Warehouse{},
		&Account{},
		&Terminal{},
		&User{},
		&UserPermission{},
		&Customer{},
		&Product{},
		&ProductCode{},
		&PriceTable{},
		&PriceTableItem{},
		&StockRow{},
		&StockMovement{},
		&CashSession{},
		&CashMovement{},
		&Sale{},
		&SaleLine{},
		&Tender{},
		&Title{},
		&Entry{},
		&AccountMovement{},
	}
}
