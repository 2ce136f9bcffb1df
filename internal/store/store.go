package store

import (
	"context"
	"errors"
	"time"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/wizard"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrConflict is returned by SaveSession when the stored session moved on
	// since the caller loaded it.
	ErrConflict = errors.New("version conflict")
)

type Repository interface {
	CreateSession(ctx context.Context, session wizard.State) (*wizard.State, error)
	GetSession(ctx context.Context, id string) (*wizard.State, error)
	FindSessionBySale(ctx context.Context, saleID int64) (*wizard.State, error)
	SaveSession(ctx context.Context, session wizard.State) (*wizard.State, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, operator string, limit int) ([]wizard.State, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
