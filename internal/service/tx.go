package service

import (
	"context"
	"errors"

	"posterminal/internal/apierror"

	"gorm.io/gorm"
)

// runTx executes fn inside one GORM transaction. Engine errors returned by fn
// pass through untouched; anything else is reported as a failed transaction.
// Either way the transaction is rolled back.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if _, ok := apierror.As(err); ok {
		return err
	}
	return apierror.TransactionFailed(err)
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// persistence wraps a read failure outside a transaction.
func persistence(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierror.As(err); ok {
		return err
	}
	return apierror.TransactionFailed(err)
}
