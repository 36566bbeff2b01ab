// Package seed creates a complete demo terminal: company, store, warehouse,
// chart of accounts, price table, products with stock, an operator and a
// supervisor. cmd/seed runs it against the configured database and the service
// tests run it against an in-memory one.
package seed

import (
	"context"
	"fmt"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	OperatorUsername   = "operator"
	OperatorPassword   = "1234"
	SupervisorUsername = "supervisor"
	SupervisorPassword = "9999"
	StoreTaxID         = "12345678000190"
)

// Options tunes the demo data. Zero values give the cmd/seed defaults.
type Options struct {
	Host           string
	AllowNonFiscal bool
	// PasswordCost defaults to bcrypt.DefaultCost.
	PasswordCost int
	// OperatorGrants replaces the default operator grants when non-nil.
	OperatorGrants []model.PermissionKey
	// OperatorCeiling is the operator's discount ceiling in percent; default 5.
	OperatorCeiling *decimal.Decimal
}

// DefaultOperatorGrants are what a regular cashier holds outright. Infusions,
// divergent closes, cancellations of finalized sales and recalls escalate.
var DefaultOperatorGrants = []model.PermissionKey{
	model.PermOpenCash,
	model.PermCloseCash,
	model.PermCashDrop,
	model.PermLineDiscount,
	model.PermSaleDiscount,
	model.PermDeleteLine,
	model.PermCancelCurrent,
	model.PermNonFiscalSale,
}

type Product struct {
	Code        string
	AltCode     string
	Description string
	Unit        string
	Price       string // empty: not in the price table
}

// Catalog is the demo product list.
var Catalog = []Product{
	{Code: "7891000100103", AltCode: "CAF500", Description: "Coffee 500g", Unit: "UN", Price: "18.90"},
	{Code: "7891000200200", Description: "Sugar 1kg", Unit: "UN", Price: "5.49"},
	{Code: "7891000300307", Description: "Whole milk 1L", Unit: "UN", Price: "4.99"},
	{Code: "2001", AltCode: "BREAD", Description: "French bread", Unit: "KG", Price: "12.00"},
	{Code: "9001", Description: "Gift wrap", Unit: "UN"},
}

// Fixture holds what was created.
type Fixture struct {
	Company    model.Company
	Store      model.StoreLocation
	Warehouse  model.Warehouse
	Terminal   model.Terminal
	Till       model.Account
	DestCash   model.Account
	DestCard   model.Account
	DestPix    model.Account
	DestOther  model.Account
	PriceTable model.PriceTable
	Products   map[string]model.Product
	Operator   model.User
	Supervisor model.User
	Customer   model.Customer
}

// Demo writes the demo data in one transaction.
func Demo(ctx context.Context, db *gorm.DB, opts Options) (*Fixture, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("seed: host is required")
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	grants := opts.OperatorGrants
	if grants == nil {
		grants = DefaultOperatorGrants
	}
	ceiling := decimal.NewFromInt(5)
	if opts.OperatorCeiling != nil {
		ceiling = *opts.OperatorCeiling
	}

	f := &Fixture{Products: make(map[string]model.Product, len(Catalog))}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f.Company = model.Company{Name: "Demo Market Ltd", TaxID: StoreTaxID}
		if err := tx.Create(&f.Company).Error; err != nil {
			return err
		}
		f.Store = model.StoreLocation{CompanyID: f.Company.ID, Name: "Downtown"}
		if err := tx.Create(&f.Store).Error; err != nil {
			return err
		}
		f.Warehouse = model.Warehouse{Name: "Downtown floor"}
		if err := tx.Create(&f.Warehouse).Error; err != nil {
			return err
		}

		accounts := []*model.Account{&f.Till, &f.DestCash, &f.DestCard, &f.DestPix, &f.DestOther}
		names := []string{"Till", "Cash vault", "Card receivables", "PIX account", "Other receivables"}
		suffix := opts.Host
		for i, a := range accounts {
			*a = model.Account{Code: fmt.Sprintf("1.1.%d-%s", i+1, suffix), Name: names[i], Balance: decimal.Zero}
			if err := tx.Create(a).Error; err != nil {
				return err
			}
		}

		f.Terminal = model.Terminal{
			Host:               opts.Host,
			Name:               "POS 01",
			Active:             true,
			CompanyID:          f.Company.ID,
			StoreLocationID:    f.Store.ID,
			DefaultWarehouseID: ptr(f.Warehouse.ID),
			TillAccountID:      ptr(f.Till.ID),
			DestCashID:         ptr(f.DestCash.ID),
			DestCardID:         ptr(f.DestCard.ID),
			DestPixID:          ptr(f.DestPix.ID),
			DestOtherID:        ptr(f.DestOther.ID),
			AllowNonFiscal:     opts.AllowNonFiscal,
			PrinterName:        "thermal-80",
		}
		if err := tx.Create(&f.Terminal).Error; err != nil {
			return err
		}

		f.PriceTable = model.PriceTable{StoreIdentifier: StoreTaxID, Name: "Retail", Active: true}
		if err := tx.Create(&f.PriceTable).Error; err != nil {
			return err
		}

		for _, p := range Catalog {
			prod := model.Product{Code: p.Code, Description: p.Description, Unit: p.Unit, Active: true}
			if err := tx.Create(&prod).Error; err != nil {
				return err
			}
			if p.AltCode != "" {
				code := model.ProductCode{ProductID: prod.ID, Code: p.AltCode, Kind: model.CodeAlternative}
				if err := tx.Create(&code).Error; err != nil {
					return err
				}
			}
			if p.Price != "" {
				item := model.PriceTableItem{PriceTableID: f.PriceTable.ID, ProductID: prod.ID, UnitPrice: decimal.RequireFromString(p.Price)}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			}
			stock := model.StockRow{ProductID: prod.ID, WarehouseID: f.Warehouse.ID, Quantity: decimal.NewFromInt(100)}
			if err := tx.Create(&stock).Error; err != nil {
				return err
			}
			f.Products[p.Code] = prod
		}

		var err error
		f.Operator, err = createUser(tx, OperatorUsername, "Olivia Operator", OperatorPassword, opts.PasswordCost, ceiling, grants)
		if err != nil {
			return err
		}
		f.Supervisor, err = createUser(tx, SupervisorUsername, "Sam Supervisor", SupervisorPassword, opts.PasswordCost,
			decimal.NewFromInt(100), model.PermissionKeys())
		if err != nil {
			return err
		}

		f.Customer = model.Customer{Name: "Walk-in Regular", TaxID: "98765432100"}
		return tx.Create(&f.Customer).Error
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// createUser stores one row per known key so every grant is explicit.
func createUser(tx *gorm.DB, username, name, password string, cost int, ceiling decimal.Decimal, grants []model.PermissionKey) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		Username:           username,
		Name:               name,
		PasswordHash:       string(hash),
		MaxDiscountPercent: ceiling,
		Active:             true,
	}
	if err := tx.Create(&u).Error; err != nil {
		return model.User{}, err
	}
	granted := make(map[model.PermissionKey]bool, len(grants))
	for _, k := range grants {
		granted[k] = true
	}
	for _, k := range model.PermissionKeys() {
		g := model.GrantNone
		if granted[k] {
			g = model.GrantTotal
		}
		if err := tx.Create(&model.UserPermission{UserID: u.ID, FieldKey: string(k), Grant: g}).Error; err != nil {
			return model.User{}, err
		}
	}
	return u, nil
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }
