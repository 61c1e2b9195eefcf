package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/pkg/db/models"
)

// Service records and reads the immutable group activity trail.
type Service interface {
	RecordTx(ctx context.Context, tx *gorm.DB, event models.ActivityEvent) error
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.ActivityEvent, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.ActivityEvent, error)
}

type service struct {
	repo Repository
}

// NewService wires an activity service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &service{repo: repo}, nil
}

// RecordTx writes one activity row inside the caller's transaction so the
// trail commits or rolls back with the state change it describes.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, event models.ActivityEvent) error {
	if event.GroupID == uuid.Nil {
		return fmt.Errorf("group id is required")
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("invalid activity event type %q", event.Type)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return s.repo.WithTx(tx).Create(ctx, &event)
}

func (s *service) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.ActivityEvent, error) {
	if groupID == uuid.Nil {
		return nil, fmt.Errorf("group id is required")
	}
	return s.repo.ListByGroup(ctx, groupID)
}

func (s *service) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.ActivityEvent, error) {
	if wallet == "" {
		return nil, fmt.Errorf("wallet is required")
	}
	return s.repo.ListByWallet(ctx, wallet, limit)
}
