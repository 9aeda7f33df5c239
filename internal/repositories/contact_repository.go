package repositories

import (
	"context"
	"fmt"
	"slices"

	"whatsapp-messenger/internal/models"

	"gorm.io/gorm"
)

// idChunkSize keeps IN (...) lists under SQLite's bound-parameter limit.
const idChunkSize = 500

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// InsertMany stores one uploaded batch of contacts.
func (r *ContactRepository) InsertMany(ctx context.Context, contacts []models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&contacts, 100).Error; err != nil {
		return fmt.Errorf("insert contacts: %w", err)
	}
	return nil
}

// List returns the newest contacts first.
func (r *ContactRepository) List(ctx context.Context, limit int) ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.WithContext(ctx).
		Order("created_at DESC, position DESC").
		Limit(limit).
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// ListAll returns every contact in stored (upload) order.
func (r *ContactRepository) ListAll(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	if err := r.db.WithContext(ctx).Order("created_at ASC, position ASC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("list all contacts: %w", err)
	}
	return contacts, nil
}

// ListByIDs returns the contacts whose id is in ids, in stored order.
// Unknown ids are ignored.
func (r *ContactRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Contact, error) {
	var contacts []models.Contact
	for start := 0; start < len(ids); start += idChunkSize {
		end := min(start+idChunkSize, len(ids))

		var chunk []models.Contact
		if err := r.db.WithContext(ctx).Where("id IN ?", ids[start:end]).Find(&chunk).Error; err != nil {
			return nil, fmt.Errorf("list contacts by id: %w", err)
		}
		contacts = append(contacts, chunk...)
	}
	sortStored(contacts)
	return contacts, nil
}

// DeleteAll clears the collection. Message logs are left untouched.
func (r *ContactRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Contact{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete contacts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ContactRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Contact{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

// sortStored orders contacts the way ListAll does, which chunked IN queries
// cannot guarantee on their own.
func sortStored(contacts []models.Contact) {
	slices.SortStableFunc(contacts, func(a, b models.Contact) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.Position - b.Position
	})
}
