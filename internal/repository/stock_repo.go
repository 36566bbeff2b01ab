package repository

import (
	"context"
	"errors"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	// ApplyDeltaTx inserts the (product, warehouse) row when absent, otherwise
	// increments it by delta. Negative results are kept.
	ApplyDeltaTx(tx *gorm.DB, productID, warehouseID uuid.UUID, delta decimal.Decimal) error
	Quantity(ctx context.Context, productID, warehouseID uuid.UUID) (decimal.Decimal, error)
	CreateMovementTx(tx *gorm.DB, m *model.StockMovement) error
	ListMovementsBySale(ctx context.Context, saleID uuid.UUID) ([]model.StockMovement, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepository(db *gorm.DB) StockRepository { return &stockRepo{db: db} }

func (r *stockRepo) ApplyDeltaTx(tx *gorm.DB, productID, warehouseID uuid.UUID, delta decimal.Decimal) error {
	row := model.StockRow{ProductID: productID, WarehouseID: warehouseID, Quantity: delta}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("stock.quantity + ?", delta),
		}),
	}).Create(&row).Error
}

func (r *stockRepo) Quantity(ctx context.Context, productID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var row model.StockRow
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	return row.Quantity, err
}

func (r *stockRepo) CreateMovementTx(tx *gorm.DB, m *model.StockMovement) error {
	return tx.Create(m).Error
}

func (r *stockRepo) ListMovementsBySale(ctx context.Context, saleID uuid.UUID) ([]model.StockMovement, error) {
	var out []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at, kind").
		Find(&out).Error
	return out, err
}
