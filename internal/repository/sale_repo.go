package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleRepository interface {
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByNumber(ctx context.Context, terminalID uuid.UUID, number int64) (*model.Sale, error)
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	UpdateTx(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Sale, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func withDetail(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tenders")
}

// CreateTx inserts the header together with its lines and tenders.
func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := withDetail(r.db.WithContext(ctx)).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *saleRepo) FindByNumber(ctx context.Context, terminalID uuid.UUID, number int64) (*model.Sale, error) {
	var s model.Sale
	err := withDetail(r.db.WithContext(ctx)).
		Where("terminal_id = ? AND terminal_sale_number = ?", terminalID, number).
		First(&s).Error
	return &s, err
}

func (r *saleRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error
	if err != nil {
		return &s, err
	}
	err = tx.Where("sale_id = ?", id).Order("position ASC").Find(&s.Lines).Error
	return &s, err
}

func (r *saleRepo) UpdateTx(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	return tx.Model(&model.Sale{}).Where("id = ?", id).Updates(fields).Error
}

func (r *saleRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Sale, error) {
	var sales []model.Sale
	err := withDetail(r.db.WithContext(ctx)).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, terminal_sale_number ASC").
		Find(&sales).Error
	return sales, err
}
