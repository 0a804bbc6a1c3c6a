package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"realestate/internal/domain"
	"realestate/internal/metrics"
	apperrors "realestate/pkg/errors"
)

const (
	defaultLeadLimit = 100
	maxLeadLimit     = 500
)

// LeadService captures leads and serves the lead dashboard
type LeadService struct {
	db       *gorm.DB
	effects  *LeadSideEffects
	webhooks *WebhookService
	tasks    *Tasks
}

// LeadInput is a visitor-submitted form. Only name and phone are required;
// no format validation is applied to phone or email.
type LeadInput struct {
	Name             string  `json:"name" validate:"required"`
	Phone            string  `json:"phone" validate:"required"`
	Email            *string `json:"email"`
	Message          *string `json:"message"`
	PropertyID       *string `json:"property_id"`
	PropertyTitle    *string `json:"property_title"`
	LeadSource       *string `json:"lead_source"`
	Interest         *string `json:"interest"`
	Urgency          *string `json:"urgency"`
	PreferredContact *string `json:"preferred_contact"`
}

// LeadFilter narrows the dashboard listing
type LeadFilter struct {
	Status string
	Source string
	Skip   int
	Limit  int
}

// LeadStats counts leads per status
type LeadStats struct {
	Total     int64 `json:"total"`
	New       int64 `json:"new"`
	Contacted int64 `json:"contacted"`
	Qualified int64 `json:"qualified"`
	Converted int64 `json:"converted"`
	Lost      int64 `json:"lost"`
}

// LeadPatch updates dashboard-only fields
type LeadPatch struct {
	AssignedTo *string   `json:"assigned_to"`
	Tags       *[]string `json:"tags"`
}

// NewLeadService creates a lead service. effects may be nil to disable post-commit steps.
func NewLeadService(db *gorm.DB, effects *LeadSideEffects, webhooks *WebhookService, tasks *Tasks) *LeadService {
	if tasks == nil {
		tasks = NewTasks()
	}
	return &LeadService{db: db, effects: effects, webhooks: webhooks, tasks: tasks}
}

// Submit validates and persists a lead, then starts the best-effort side
// effects in the background. Only a persistence failure fails the call.
func (s *LeadService) Submit(ctx context.Context, in LeadInput, meta RequestMeta) (*domain.Lead, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	log.Printf("[LEADS] Submit request: name=%s, source=%s", in.Name, valueOr(in.LeadSource, domain.LeadSourceWebsite))

	if err := validateStruct(in); err != nil {
		log.Printf("[LEADS] Submit failed: validation error: %v", err)
		return nil, err
	}

	lead := &domain.Lead{
		Name:             in.Name,
		Phone:            in.Phone,
		Email:            trimPtr(in.Email),
		Message:          trimPtr(in.Message),
		PropertyID:       trimPtr(in.PropertyID),
		LeadSource:       valueOr(trimPtr(in.LeadSource), domain.LeadSourceWebsite),
		Interest:         trimPtr(in.Interest),
		Urgency:          trimPtr(in.Urgency),
		PreferredContact: trimPtr(in.PreferredContact),
		Status:           domain.LeadStatusNew,
		Tags:             datatypes.JSONSlice[string]{},
	}
	if lead.Email != nil {
		email := strings.ToLower(*lead.Email)
		lead.Email = &email
	}
	if lead.LeadSource == domain.LeadSourceContactFormEnhanced {
		if lead.Urgency == nil {
			lead.Urgency = stringPtr("normal")
		}
		if lead.PreferredContact == nil {
			lead.PreferredContact = stringPtr("whatsapp")
		}
	}
	lead.PropertyTitle = s.propertyTitle(ctx, lead.PropertyID, trimPtr(in.PropertyTitle))

	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		log.Printf("[LEADS] Submit failed: database error: %v", err)
		return nil, apperrors.Internal("could not save your contact, please try again", err)
	}

	log.Printf("[LEADS] Submit successful: id=%s, source=%s", lead.ID, lead.LeadSource)
	metrics.RecordLeadSubmitted(lead.LeadSource)

	if s.effects != nil {
		detached := context.WithoutCancel(ctx)
		saved := *lead
		s.tasks.Go("lead side effects", func() {
			s.effects.Run(detached, &saved, meta)
		})
	}

	return lead, nil
}

// propertyTitle prefers the caller's title, then the catalog title, then the default
func (s *LeadService) propertyTitle(ctx context.Context, propertyID, title *string) string {
	if title != nil {
		return *title
	}
	if propertyID != nil {
		var property domain.Property
		if err := s.db.WithContext(ctx).Select("title").First(&property, "id = ?", *propertyID).Error; err == nil {
			return property.Title
		}
	}
	return domain.DefaultPropertyTitle
}

// Get returns one lead
func (s *LeadService) Get(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := s.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("lead not found")
		}
		log.Printf("[LEADS] Get failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch lead", err)
	}
	return &lead, nil
}

// List returns leads newest first
func (s *LeadService) List(ctx context.Context, f LeadFilter) ([]domain.Lead, error) {
	log.Printf("[LEADS] List request: status=%s, source=%s, skip=%d, limit=%d", f.Status, f.Source, f.Skip, f.Limit)

	if f.Status != "" && !domain.IsValidLeadStatus(f.Status) {
		return nil, apperrors.Validation("status must be one of: " + strings.Join(domain.LeadStatuses, " "))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLeadLimit
	}
	if limit > maxLeadLimit {
		limit = maxLeadLimit
	}
	skip := f.Skip
	if skip < 0 {
		skip = 0
	}

	var leads []domain.Lead
	if err := s.filtered(ctx, f).Order("created_at DESC").Offset(skip).Limit(limit).Find(&leads).Error; err != nil {
		log.Printf("[LEADS] List failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch leads", err)
	}

	log.Printf("[LEADS] List successful: returned %d leads", len(leads))
	return leads, nil
}

func (s *LeadService) filtered(ctx context.Context, f LeadFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&domain.Lead{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Source != "" {
		query = query.Where("lead_source = ?", f.Source)
	}
	return query
}

// Stats counts leads per status
func (s *LeadService) Stats(ctx context.Context) (*LeadStats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		log.Printf("[LEADS] Stats failed: database error: %v", err)
		return nil, apperrors.Internal("failed to compute lead stats", err)
	}

	stats := &LeadStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case domain.LeadStatusNew:
			stats.New = row.Count
		case domain.LeadStatusContacted:
			stats.Contacted = row.Count
		case domain.LeadStatusQualified:
			stats.Qualified = row.Count
		case domain.LeadStatusConverted:
			stats.Converted = row.Count
		case domain.LeadStatusLost:
			stats.Lost = row.Count
		}
	}
	return stats, nil
}

// UpdateStatus moves a lead to a new status and notifies lead_status_change subscribers
func (s *LeadService) UpdateStatus(ctx context.Context, id, status string) (*domain.Lead, error) {
	status = strings.TrimSpace(status)
	if !domain.IsValidLeadStatus(status) {
		return nil, apperrors.Validation("status must be one of: " + strings.Join(domain.LeadStatuses, " "))
	}

	lead, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := lead.Status

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(lead).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}).Error; err != nil {
		log.Printf("[LEADS] UpdateStatus failed: database error: %v", err)
		return nil, apperrors.Internal("failed to update lead", err)
	}
	lead.Status = status
	lead.UpdatedAt = now

	log.Printf("[LEADS] Status updated: id=%s, %s -> %s", lead.ID, previous, status)

	if s.webhooks != nil {
		detached := context.WithoutCancel(ctx)
		payload := map[string]interface{}{
			"lead":            *lead,
			"previous_status": previous,
			"new_status":      status,
		}
		s.tasks.Go("lead status fan-out", func() {
			if _, err := s.webhooks.Trigger(detached, domain.EventLeadStatusChange, payload); err != nil {
				metrics.RecordSideEffectFailure("fanout")
				log.Printf("[LEADS] Warning: status fan-out failed for lead id=%s: %v", id, err)
			}
		})
	}

	return lead, nil
}

// Update changes the assignee and tags of a lead
func (s *LeadService) Update(ctx context.Context, id string, patch LeadPatch) (*domain.Lead, error) {
	lead, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.AssignedTo != nil {
		lead.AssignedTo = trimPtr(patch.AssignedTo)
		updates["assigned_to"] = lead.AssignedTo
	}
	if patch.Tags != nil {
		tags := make([]string, 0, len(*patch.Tags))
		for _, tag := range *patch.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		lead.Tags = datatypes.NewJSONSlice(tags)
		updates["tags"] = lead.Tags
	}

	if err := s.db.WithContext(ctx).Model(lead).Updates(updates).Error; err != nil {
		log.Printf("[LEADS] Update failed: database error: %v", err)
		return nil, apperrors.Internal("failed to update lead", err)
	}
	return s.Get(ctx, id)
}

// ExportCSV writes every lead matching the filter as CSV
func (s *LeadService) ExportCSV(ctx context.Context, w io.Writer, f LeadFilter) error {
	if f.Status != "" && !domain.IsValidLeadStatus(f.Status) {
		return apperrors.Validation("status must be one of: " + strings.Join(domain.LeadStatuses, " "))
	}

	var leads []domain.Lead
	if err := s.filtered(ctx, f).Order("created_at DESC").Find(&leads).Error; err != nil {
		log.Printf("[LEADS] Export failed: database error: %v", err)
		return apperrors.Internal("failed to export leads", err)
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "name", "email", "phone", "property_title", "lead_source", "status", "interest", "urgency", "preferred_contact", "assigned_to", "tags", "message", "created_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, lead := range leads {
		record := []string{
			lead.ID,
			lead.Name,
			valueOr(lead.Email, ""),
			lead.Phone,
			lead.PropertyTitle,
			lead.LeadSource,
			lead.Status,
			valueOr(lead.Interest, ""),
			valueOr(lead.Urgency, ""),
			valueOr(lead.PreferredContact, ""),
			valueOr(lead.AssignedTo, ""),
			strings.Join(lead.Tags, ";"),
			valueOr(lead.Message, ""),
			lead.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	log.Printf("[LEADS] Export successful: %d leads", len(leads))
	return nil
}

// Wait blocks until background side effects have finished
func (s *LeadService) Wait() {
	s.tasks.Wait()
}
