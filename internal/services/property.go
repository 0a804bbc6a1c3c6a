package services

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"realestate/internal/domain"
	"realestate/internal/storage"
	apperrors "realestate/pkg/errors"
)

// ImageStore uploads property media and returns a public URL
type ImageStore interface {
	Upload(ctx context.Context, originalName, contentType string, content io.Reader) (string, error)
}

// PropertyService manages the property catalog
type PropertyService struct {
	db        *gorm.DB
	images    ImageStore
	analytics *AnalyticsService
	webhooks  *WebhookService
	tasks     *Tasks
}

// PropertyInput is the payload for creating or replacing a listing
type PropertyInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" validate:"gte=0"`
	Location    string   `json:"location" validate:"required"`
	Bedrooms    int      `json:"bedrooms" validate:"gte=0"`
	Bathrooms   int      `json:"bathrooms" validate:"gte=0"`
	Area        float64  `json:"area" validate:"gte=0"`
	Images      []string `json:"images"`
	Video       *string  `json:"video"`
	Featured    bool     `json:"featured"`
	Type        string   `json:"type" validate:"required,oneof=apartment house commercial"`
	Status      string   `json:"status" validate:"required,oneof=for-sale for-rent sold"`
}

// PropertyFilter narrows the public listing
type PropertyFilter struct {
	Featured    *bool
	Type        string
	Status      string
	Location    string
	MinPrice    *float64
	MaxPrice    *float64
	MinBedrooms *int
}

// NewPropertyService creates a property service
func NewPropertyService(db *gorm.DB, images ImageStore, analytics *AnalyticsService, webhooks *WebhookService, tasks *Tasks) *PropertyService {
	if tasks == nil {
		tasks = NewTasks()
	}
	return &PropertyService{db: db, images: images, analytics: analytics, webhooks: webhooks, tasks: tasks}
}

// List returns properties matching the filter, newest first
func (s *PropertyService) List(ctx context.Context, f PropertyFilter) ([]domain.Property, error) {
	query := s.db.WithContext(ctx).Model(&domain.Property{})
	if f.Featured != nil {
		query = query.Where("featured = ?", *f.Featured)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		query = query.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(loc)+"%")
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		query = query.Where("bedrooms >= ?", *f.MinBedrooms)
	}

	var properties []domain.Property
	if err := query.Order("created_at DESC").Find(&properties).Error; err != nil {
		log.Printf("[PROPERTIES] List failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch properties", err)
	}
	return properties, nil
}

// Get returns one property
func (s *PropertyService) Get(ctx context.Context, id string) (*domain.Property, error) {
	var property domain.Property
	if err := s.db.WithContext(ctx).First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("property not found")
		}
		log.Printf("[PROPERTIES] Get failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch property", err)
	}
	return &property, nil
}

// Create adds a listing
func (s *PropertyService) Create(ctx context.Context, in PropertyInput) (*domain.Property, error) {
	property := &domain.Property{}
	if err := applyPropertyInput(property, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(property).Error; err != nil {
		log.Printf("[PROPERTIES] Create failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save property", err)
	}
	log.Printf("[PROPERTIES] Created: id=%s, title=%s", property.ID, property.Title)
	return property, nil
}

// Update replaces a listing's fields
func (s *PropertyService) Update(ctx context.Context, id string, in PropertyInput) (*domain.Property, error) {
	property, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPropertyInput(property, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(property).Error; err != nil {
		log.Printf("[PROPERTIES] Update failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save property", err)
	}
	log.Printf("[PROPERTIES] Updated: id=%s", property.ID)
	return property, nil
}

// Delete removes a listing. Leads keep their stored property title.
func (s *PropertyService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&domain.Property{}, "id = ?", id)
	if res.Error != nil {
		log.Printf("[PROPERTIES] Delete failed: database error: %v", res.Error)
		return apperrors.Internal("failed to delete property", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("property not found")
	}
	log.Printf("[PROPERTIES] Deleted: id=%s", id)
	return nil
}

// RecordView tracks a property detail view and notifies property_view subscribers
func (s *PropertyService) RecordView(ctx context.Context, id string, meta RequestMeta) error {
	property, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	detached := context.WithoutCancel(ctx)
	snapshot := *property
	s.tasks.Go("property view", func() {
		if s.analytics != nil {
			if _, err := s.analytics.Record(detached, AnalyticsEventInput{
				EventType: domain.AnalyticsViewItem,
				Data: map[string]interface{}{
					"item_id":   snapshot.ID,
					"item_name": snapshot.Title,
					"price":     snapshot.Price,
					"currency":  "BRL",
				},
				PropertyID:  &snapshot.ID,
				UserSession: meta.UserSession,
				IPAddress:   meta.IPAddress,
				UserAgent:   meta.UserAgent,
			}); err != nil {
				log.Printf("[PROPERTIES] Warning: view analytics failed: %v", err)
			}
		}
		if s.webhooks != nil {
			if _, err := s.webhooks.Trigger(detached, domain.EventPropertyView, snapshot); err != nil {
				log.Printf("[PROPERTIES] Warning: view fan-out failed: %v", err)
			}
		}
	})
	return nil
}

// UploadImage stores an image and returns its public URL
func (s *PropertyService) UploadImage(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperrors.Validation("file must be an image")
	}
	if s.images == nil {
		return "", apperrors.BadRequest("image storage is not configured")
	}

	url, err := s.images.Upload(ctx, filename, contentType, content)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return "", apperrors.BadRequest("image storage is not configured")
		}
		log.Printf("[PROPERTIES] Upload failed: %v", err)
		return "", apperrors.Internal("failed to upload image", err)
	}
	log.Printf("[PROPERTIES] Image uploaded: %s", url)
	return url, nil
}

// Wait blocks until background work has finished
func (s *PropertyService) Wait() {
	s.tasks.Wait()
}

func applyPropertyInput(p *domain.Property, in PropertyInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	in.Type = strings.TrimSpace(in.Type)
	in.Status = strings.TrimSpace(in.Status)
	if err := validateStruct(in); err != nil {
		return err
	}

	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}

	p.Title = in.Title
	p.Description = strings.TrimSpace(in.Description)
	p.Price = in.Price
	p.Location = in.Location
	p.Bedrooms = in.Bedrooms
	p.Bathrooms = in.Bathrooms
	p.Area = in.Area
	p.Images = datatypes.NewJSONSlice(images)
	p.Video = trimPtr(in.Video)
	p.Featured = in.Featured
	p.Type = in.Type
	p.Status = in.Status
	return nil
}
