package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TerminalRepository reads the terminal record and the rows it links to.
// Counter writes always happen inside the caller's transaction.
type TerminalRepository interface {
	FindActiveByHost(ctx context.Context, host string) ([]model.Terminal, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Terminal, error)
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Terminal, error)
	UpdateCounterTx(tx *gorm.DB, id uuid.UUID, counter int64) error
	FindCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	FindStoreLocation(ctx context.Context, id uuid.UUID) (*model.StoreLocation, error)
	WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error)
	CountAccounts(ctx context.Context, ids []uuid.UUID) (int64, error)
	// FindActivePriceTables returns at most two rows, enough to tell a single
	// active table from an ambiguous configuration.
	FindActivePriceTables(ctx context.Context, storeIdentifier string) ([]model.PriceTable, error)
	DB() *gorm.DB
}

type terminalRepo struct{ db *gorm.DB }

func NewTerminalRepository(db *gorm.DB) TerminalRepository { return &terminalRepo{db: db} }

func (r *terminalRepo) DB() *gorm.DB { return r.db }

func (r *terminalRepo) FindActiveByHost(ctx context.Context, host string) ([]model.Terminal, error) {
	var ts []model.Terminal
	err := r.db.WithContext(ctx).Where("host = ? AND active = ?", host, true).Find(&ts).Error
	return ts, err
}

func (r *terminalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Terminal, error) {
	var t model.Terminal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	return &t, err
}

// LockTx reads the terminal with a row lock so concurrent commits on the same
// terminal serialize on the sale counter.
func (r *terminalRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Terminal, error) {
	var t model.Terminal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&t).Error
	return &t, err
}

func (r *terminalRepo) UpdateCounterTx(tx *gorm.DB, id uuid.UUID, counter int64) error {
	return tx.Model(&model.Terminal{}).Where("id = ?", id).Update("next_sale_counter", counter).Error
}

func (r *terminalRepo) FindCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var c model.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *terminalRepo) FindStoreLocation(ctx context.Context, id uuid.UUID) (*model.StoreLocation, error) {
	var s model.StoreLocation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *terminalRepo) WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Warehouse{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *terminalRepo) CountAccounts(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Where("id IN ?", ids).Count(&n).Error
	return n, err
}

func (r *terminalRepo) FindActivePriceTables(ctx context.Context, storeIdentifier string) ([]model.PriceTable, error) {
	var tables []model.PriceTable
	err := r.db.WithContext(ctx).
		Where("store_identifier = ? AND active = ?", storeIdentifier, true).
		Order("name").
		Limit(2).
		Find(&tables).Error
	return tables, err
}
