package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"realestate/internal/domain"
	apperrors "realestate/pkg/errors"
)

// TemplateService manages operator message templates
type TemplateService struct {
	db *gorm.DB
}

// TemplateInput is the payload for creating a template
type TemplateInput struct {
	Name      string   `json:"name" validate:"required"`
	Content   string   `json:"content" validate:"required"`
	Type      string   `json:"type" validate:"required,oneof=new_lead follow_up welcome"`
	Variables []string `json:"variables"`
	Active    *bool    `json:"active"`
}

// NewTemplateService creates a new template service
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// List returns all templates, newest first
func (s *TemplateService) List(ctx context.Context) ([]domain.MessageTemplate, error) {
	var templates []domain.MessageTemplate
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&templates).Error; err != nil {
		log.Printf("[TEMPLATES] List failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch templates", err)
	}
	return templates, nil
}

// Create stores a new template
func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*domain.MessageTemplate, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	variables := make([]string, 0, len(in.Variables))
	for _, v := range in.Variables {
		if v = strings.TrimSpace(v); v != "" {
			variables = append(variables, v)
		}
	}

	tpl := &domain.MessageTemplate{
		Name:      in.Name,
		Content:   in.Content,
		Type:      in.Type,
		Variables: datatypes.NewJSONSlice(variables),
		Active:    active,
	}
	if err := s.db.WithContext(ctx).Create(tpl).Error; err != nil {
		log.Printf("[TEMPLATES] Create failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save template", err)
	}

	log.Printf("[TEMPLATES] Template created: id=%s, type=%s", tpl.ID, tpl.Type)
	return tpl, nil
}

// ActiveByType returns the most recent active template of the given type, or nil
func (s *TemplateService) ActiveByType(ctx context.Context, templateType string) (*domain.MessageTemplate, error) {
	var tpl domain.MessageTemplate
	err := s.db.WithContext(ctx).
		Where("type = ? AND active = ?", templateType, true).
		Order("created_at DESC").
		First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Render replaces {{name}} for every declared variable. Missing values render as "".
func Render(tpl *domain.MessageTemplate, values map[string]string) string {
	content := tpl.Content
	for _, variable := range tpl.Variables {
		content = strings.ReplaceAll(content, "{{"+variable+"}}", values[variable])
	}
	return content
}
