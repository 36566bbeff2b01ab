package service

import (
	"context"
	"testing"

	"posterminal/internal/apierror"
	"posterminal/internal/model"
	"posterminal/internal/seed"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind_Demo(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	b := env.binding

	assert.Equal(t, env.fx.Terminal.ID, b.Terminal.ID)
	assert.Equal(t, env.fx.Warehouse.ID, b.WarehouseID)
	assert.Equal(t, env.fx.Till.ID, b.TillAccountID)
	assert.Equal(t, seed.StoreTaxID, b.StoreIdentifier)
	assert.Equal(t, env.fx.PriceTable.ID, b.PriceTable.ID)
	assert.Equal(t, env.fx.DestCash.ID, b.DestinationFor(model.FormCash))
	assert.Equal(t, env.fx.DestCard.ID, b.DestinationFor(model.FormCard))
	assert.Equal(t, env.fx.DestPix.ID, b.DestinationFor(model.FormPix))
	assert.Equal(t, env.fx.DestOther.ID, b.DestinationFor(model.FormVoucher))
	assert.Equal(t, env.fx.DestOther.ID, b.DestinationFor(model.FormOther))
}

func TestBind_Failures(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		mutate func(t *testing.T, env *testEnv)
		code   apierror.Code
	}{
		{
			name: "unknown host",
			host: "somewhere-else",
			code: apierror.CodeHostUnregistered,
		},
		{
			name: "inactive terminal",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Model(&model.Terminal{}).Where("id = ?", env.fx.Terminal.ID).Update("active", false).Error)
			},
			code: apierror.CodeHostUnregistered,
		},
		{
			name: "two terminals on one host",
			mutate: func(t *testing.T, env *testEnv) {
				dup := env.fx.Terminal
				dup.ID = uuid.Nil
				dup.Name = "POS 02"
				require.NoError(t, env.db.Create(&dup).Error)
			},
			code: apierror.CodeHostUnregistered,
		},
		{
			name: "no warehouse",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Model(&model.Terminal{}).Where("id = ?", env.fx.Terminal.ID).Update("warehouse_id", nil).Error)
			},
			code: apierror.CodeWarehouseMissing,
		},
		{
			name: "dangling warehouse",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Model(&model.Terminal{}).Where("id = ?", env.fx.Terminal.ID).Update("warehouse_id", uuid.New()).Error)
			},
			code: apierror.CodeWarehouseMissing,
		},
		{
			name: "no pix destination",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Model(&model.Terminal{}).Where("id = ?", env.fx.Terminal.ID).Update("dest_pix_id", nil).Error)
			},
			code: apierror.CodeFinancialLinkMissing,
		},
		{
			name: "dangling till",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Model(&model.Terminal{}).Where("id = ?", env.fx.Terminal.ID).Update("till_account_id", uuid.New()).Error)
			},
			code: apierror.CodeFinancialLinkMissing,
		},
		{
			name: "price table inactive",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Model(&model.PriceTable{}).Where("id = ?", env.fx.PriceTable.ID).Update("active", false).Error)
			},
			code: apierror.CodeNoActivePriceTable,
		},
		{
			name: "two active price tables",
			mutate: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.db.Create(&model.PriceTable{StoreIdentifier: seed.StoreTaxID, Name: "Wholesale", Active: true}).Error)
			},
			code: apierror.CodeNoActivePriceTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, seed.Options{})
			if tt.mutate != nil {
				tt.mutate(t, env)
			}
			host := tt.host
			if host == "" {
				host = testHost
			}
			_, err := NewTerminalService(env.terminals).Bind(context.Background(), host)
			requireCode(t, err, apierror.CategoryBinding, tt.code)
			assert.ErrorIs(t, err, &apierror.Error{Category: apierror.CategoryBinding, Code: tt.code})
		})
	}
}
