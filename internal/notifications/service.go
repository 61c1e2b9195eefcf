package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

// Service defines notification create/list/read operations.
type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, notification models.Notification) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, wallet string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, wallet string) (int64, error)
}

type service struct {
	repo Repository
}

// ListParams configures pagination for notifications.
type ListParams struct {
	Wallet     string
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

// CreateTx writes a notification inside the caller's transaction so it commits
// with the state change that produced it.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, notification models.Notification) error {
	if notification.Wallet == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}
	if !notification.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if err := s.repo.WithTx(tx).Create(ctx, &notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Wallet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}

	query := listNotificationsParams{
		Wallet:     params.Wallet,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, wallet string, notificationID uuid.UUID) error {
	if wallet == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, wallet, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, wallet string) (int64, error) {
	if wallet == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "wallet required")
	}

	count, err := s.repo.MarkAllRead(ctx, wallet, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
