package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository interface {
	// LockAccountsTx locks the rows in ascending id order so two closures
	// touching the same accounts cannot deadlock.
	LockAccountsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Account, error)
	AdjustBalanceTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error
	// CreateTitleTx inserts the title with its entries and their legs.
	CreateTitleTx(tx *gorm.DB, t *model.Title) error
	FindAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ListTitlesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Title, error)
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) LockAccountsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Account, error) {
	var accs []model.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&accs).Error
	return accs, err
}

func (r *ledgerRepo) AdjustBalanceTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	return tx.Model(&model.Account{}).Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (r *ledgerRepo) CreateTitleTx(tx *gorm.DB, t *model.Title) error {
	return tx.Create(t).Error
}

func (r *ledgerRepo) FindAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	return &a, err
}

func (r *ledgerRepo) ListTitlesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Title, error) {
	var titles []model.Title
	err := r.db.WithContext(ctx).
		Preload("Entries.Movements").
		Where("session_id = ?", sessionID).
		Find(&titles).Error
	return titles, err
}
