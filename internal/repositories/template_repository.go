package repositories

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-messenger/internal/models"

	"gorm.io/gorm"
)

var ErrTemplateNotFound = errors.New("template not found")

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tmpl *models.MessageTemplate) error {
	if err := r.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return &tmpl, nil
}

// List returns the newest templates first.
func (r *TemplateRepository) List(ctx context.Context, limit int) ([]models.MessageTemplate, error) {
	var templates []models.MessageTemplate
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}
