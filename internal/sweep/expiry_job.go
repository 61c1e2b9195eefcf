package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	group "github.com/monkelabs/monke-backend/internal/groups"
	pkgerrors "github.com/monkelabs/monke-backend/pkg/errors"
	"github.com/monkelabs/monke-backend/pkg/logger"
)

const defaultBatchSize = 100

type overdueLister interface {
	ListOverdueForming(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type groupExpirer interface {
	ExpireGroup(ctx context.Context, id uuid.UUID) (*group.GroupDTO, error)
}

type groupLocker interface {
	LockGroup(ctx context.Context, id uuid.UUID, actorWallet string) (*group.SettlementDTO, error)
}

// ExpiryJobParams configure the group expiry sweep.
type ExpiryJobParams struct {
	Logger    *logger.Logger
	Groups    overdueLister
	Expirer   groupExpirer
	Locker    groupLocker
	BatchSize int
}

// NewExpiryJob builds the job that expires forming groups past their TTL.
func NewExpiryJob(params ExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("group lister required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("group expirer required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("group locker required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &expiryJob{
		logg:      params.Logger,
		groups:    params.Groups,
		expirer:   params.Expirer,
		locker:    params.Locker,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type expiryJob struct {
	logg      *logger.Logger
	groups    overdueLister
	expirer   groupExpirer
	locker    groupLocker
	batchSize int
	now       func() time.Time
}

func (j *expiryJob) Name() string { return "group-expiry" }

// Run expires one batch of overdue forming groups. Each expiry runs in its own
// transaction inside the group service, so one poisoned group cannot block the
// rest of the batch.
func (j *expiryJob) Run(ctx context.Context) error {
	ids, err := j.groups.ListOverdueForming(ctx, j.now(), j.batchSize)
	if err != nil {
		return fmt.Errorf("list overdue groups: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	var errs error
	expired := 0
	locked := 0
	for _, id := range ids {
		_, err := j.expirer.ExpireGroup(ctx, id)
		if err == nil {
			expired++
			continue
		}
		groupCtx := j.logg.WithField(ctx, "group_id", id.String())
		// The service refuses to expire a group that met its minimum;
		// those settle through the lock protocol instead.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			if _, lockErr := j.locker.LockGroup(ctx, id, ""); lockErr != nil {
				j.logg.Error(groupCtx, "failed to lock overdue group", lockErr)
				errs = multierr.Append(errs, fmt.Errorf("lock overdue group %s: %w", id, lockErr))
				continue
			}
			locked++
			continue
		}
		j.logg.Error(groupCtx, "failed to expire group", err)
		errs = multierr.Append(errs, fmt.Errorf("expire group %s: %w", id, err))
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"overdue": len(ids),
		"expired": expired,
		"locked":  locked,
	}), "expiry sweep batch finished")
	return errs
}
