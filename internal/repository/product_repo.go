package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductRepository interface {
	FindActiveByCode(ctx context.Context, code string) (*model.Product, error)
	FindActiveByCodeKind(ctx context.Context, code string, kind model.CodeKind) (*model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// UnitPrice returns ok=false when the table carries no price for the product.
	UnitPrice(ctx context.Context, priceTableID, productID uuid.UUID) (price decimal.Decimal, ok bool, err error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) FindActiveByCode(ctx context.Context, code string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("code = ? AND active = ?", code, true).First(&p).Error
	return &p, err
}

func (r *productRepo) FindActiveByCodeKind(ctx context.Context, code string, kind model.CodeKind) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN product_codes pc ON pc.product_id = products.id").
		Where("pc.code = ? AND pc.kind = ? AND products.active = ?", code, kind, true).
		First(&p).Error
	return &p, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *productRepo) UnitPrice(ctx context.Context, priceTableID, productID uuid.UUID) (decimal.Decimal, bool, error) {
	var items []model.PriceTableItem
	err := r.db.WithContext(ctx).
		Where("price_table_id = ? AND product_id = ?", priceTableID, productID).
		Limit(1).Find(&items).Error
	if err != nil || len(items) == 0 {
		return decimal.Zero, false, err
	}
	return items[0].UnitPrice, true, nil
}
