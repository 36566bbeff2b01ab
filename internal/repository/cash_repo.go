package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashRepository stores sessions and their movements. Movements are immutable:
// there is no Update or Delete.
type CashRepository interface {
	CreateSessionTx(tx *gorm.DB, s *model.CashSession) error
	FindOpenSession(ctx context.Context, terminalID, operatorID uuid.UUID) (*model.CashSession, error)
	FindOpenSessionTx(tx *gorm.DB, terminalID, operatorID uuid.UUID) ([]model.CashSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	LockSessionTx(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	SaveSessionTx(tx *gorm.DB, s *model.CashSession) error
	CreateMovement(ctx context.Context, m *model.CashMovement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error)
	DB() *gorm.DB
}

type cashRepo struct{ db *gorm.DB }

func NewCashRepository(db *gorm.DB) CashRepository { return &cashRepo{db: db} }

func (r *cashRepo) DB() *gorm.DB { return r.db }

func (r *cashRepo) CreateSessionTx(tx *gorm.DB, s *model.CashSession) error {
	return tx.Create(s).Error
}

func (r *cashRepo) FindOpenSession(ctx context.Context, terminalID, operatorID uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("terminal_id = ? AND operator_id = ? AND status = ?", terminalID, operatorID, model.SessionOpen).
		First(&s).Error
	return &s, err
}

func (r *cashRepo) FindOpenSessionTx(tx *gorm.DB, terminalID, operatorID uuid.UUID) ([]model.CashSession, error) {
	var ss []model.CashSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("terminal_id = ? AND operator_id = ? AND status = ?", terminalID, operatorID, model.SessionOpen).
		Find(&ss).Error
	return ss, err
}

func (r *cashRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *cashRepo) LockSessionTx(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *cashRepo) SaveSessionTx(tx *gorm.DB, s *model.CashSession) error {
	return tx.Save(s).Error
}

func (r *cashRepo) CreateMovement(ctx context.Context, m *model.CashMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cashRepo) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&movs).Error
	return movs, err
}
