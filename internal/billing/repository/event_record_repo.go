package repository

import (
	"context"
	"errors"

	"github.com/checklanehq/checklane/internal/billing/domain"
	"gorm.io/gorm"
)

type eventRecordRepo struct {
	db *gorm.DB
}

func NewEventRecordRepository(db *gorm.DB) domain.EventRecordRepository {
	return &eventRecordRepo{db: db}
}

func (r *eventRecordRepo) FindByProviderEventID(ctx context.Context, db *gorm.DB, providerEventID string) (*domain.EventRecord, error) {
	if db == nil {
		db = r.db
	}
	var record domain.EventRecord
	if err := db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Insert writes the ledger fence. A gorm.ErrDuplicatedKey return means a
// concurrent delivery committed first; callers treat that as a duplicate.
func (r *eventRecordRepo) Insert(ctx context.Context, db *gorm.DB, record *domain.EventRecord) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(record).Error
}
