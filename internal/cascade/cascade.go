package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/pkg/logger"
)

// Step soft-deletes the dependents of one relationship for a root id.
// Steps run inside the cascade transaction and must only touch rows owned
// by the given root.
type Step func(tx *gorm.DB, rootID string, deletedAt, purgeAfter time.Time) error

// Service propagates a soft delete from a root entity to its registered
// dependents in a single transaction.
type Service struct {
	db        *gorm.DB
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu    sync.RWMutex
	steps map[string][]Step
}

// Option customises the Service.
type Option func(*Service)

// WithRetention overrides the soft-delete retention window.
func WithRetention(retention time.Duration) Option {
	return func(s *Service) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a cascade delete service.
func NewService(db *gorm.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("cascade: db is required")
	}

	svc := &Service{
		db:        db,
		retention: models.DefaultRetention,
		now:       time.Now,
		log:       logger.WithModule("cascade"),
		steps:     make(map[string][]Step),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register adds dependent steps for a root table. Repeated calls append.
func (s *Service) Register(rootTable string, steps ...Step) {
	rootTable = strings.TrimSpace(rootTable)
	if rootTable == "" || len(steps) == 0 {
		return
	}

	s.mu.Lock()
	s.steps[rootTable] = append(s.steps[rootTable], steps...)
	s.mu.Unlock()
}

// SoftDeleteCascade tombstones the root row in rootTable and all registered
// dependents atomically. It reports false without error when the root is
// missing or already deleted, making repeat calls idempotent.
func (s *Service) SoftDeleteCascade(ctx context.Context, rootTable, id string) (bool, error) {
	if s == nil {
		return false, errors.New("cascade: service not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Table(rootTable).
		Where("id = ? AND deleted_at IS NULL", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("cascade: load root: %w", err)
	}
	if count == 0 {
		return false, nil
	}

	now := s.now()
	purgeAfter := now.Add(s.retention)

	s.mu.RLock()
	steps := s.steps[rootTable]
	s.mu.RUnlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Table(rootTable).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(map[string]any{"deleted_at": now, "purge_after": purgeAfter})
		if result.Error != nil {
			return fmt.Errorf("cascade: delete root: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost a race with a concurrent delete.
			return errAlreadyDeleted
		}

		for _, step := range steps {
			if err := step(tx, id, now, purgeAfter); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errAlreadyDeleted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.log.Info("cascade soft delete",
		zap.String("root", rootTable),
		zap.String("id", id),
		zap.Time("purge_after", purgeAfter),
	)
	return true, nil
}

var errAlreadyDeleted = errors.New("cascade: root already deleted")

// TombstoneStep returns a Step that tombstones every row of table whose
// foreign key column references the root.
func TombstoneStep(table, fkColumn string) Step {
	return func(tx *gorm.DB, rootID string, deletedAt, purgeAfter time.Time) error {
		err := tx.Table(table).
			Where(fmt.Sprintf("%s = ? AND deleted_at IS NULL", fkColumn), rootID).
			Updates(map[string]any{"deleted_at": deletedAt, "purge_after": purgeAfter}).Error
		if err != nil {
			return fmt.Errorf("cascade: delete %s: %w", table, err)
		}
		return nil
	}
}

// SubqueryStep tombstones rows of table whose fkColumn matches ids selected
// from parentTable by parentFK, covering one level of indirection (for
// example exam questions under a user's exams).
func SubqueryStep(table, fkColumn, parentTable, parentFK string) Step {
	return func(tx *gorm.DB, rootID string, deletedAt, purgeAfter time.Time) error {
		sub := tx.Table(parentTable).Select("id").Where(fmt.Sprintf("%s = ?", parentFK), rootID)
		err := tx.Table(table).
			Where(fmt.Sprintf("%s IN (?) AND deleted_at IS NULL", fkColumn), sub).
			Updates(map[string]any{"deleted_at": deletedAt, "purge_after": purgeAfter}).Error
		if err != nil {
			return fmt.Errorf("cascade: delete %s: %w", table, err)
		}
		return nil
	}
}
