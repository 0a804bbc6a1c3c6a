package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"gorm.io/gorm"

	"realestate/internal/cache"
	"realestate/internal/config"
	"realestate/internal/domain"
	"realestate/internal/gateway"
	"realestate/internal/metrics"
	apperrors "realestate/pkg/errors"
)

const settingsCacheKey = "site_settings"

// SettingsService owns the singleton site settings row. The database is
// authoritative; the local cache serves reads while the database is unreachable.
type SettingsService struct {
	db    *gorm.DB
	cache *cache.Store
	seed  domain.EvolutionAPISettings

	createMu sync.Mutex
}

// SettingsPatch carries the general settings fields to change
type SettingsPatch struct {
	CompanyName    *string                     `json:"company_name"`
	Logo           *string                     `json:"logo"`
	LogoDark       *string                     `json:"logo_dark"`
	PrimaryColor   *string                     `json:"primary_color"`
	SecondaryColor *string                     `json:"secondary_color"`
	ContactEmail   *string                     `json:"contact_email"`
	ContactPhone   *string                     `json:"contact_phone"`
	Address        *string                     `json:"address"`
	SocialMedia    *domain.SocialMediaSettings `json:"social_media"`
	Tracking       *domain.TrackingSettings    `json:"tracking"`
	N8NConfig      *domain.N8NSettings         `json:"n8n_config"`
}

// GatewayPatch carries messaging gateway credentials. An empty api key
// keeps the stored one so a masked read can be sent back unchanged.
type GatewayPatch struct {
	APIURL        *string `json:"api_url"`
	APIKey        *string `json:"api_key"`
	InstanceName  *string `json:"instance_name"`
	OperatorPhone *string `json:"operator_phone"`
}

// PublicSettings is the subset of settings safe to expose to visitors
type PublicSettings struct {
	CompanyName    string                     `json:"company_name"`
	Logo           string                     `json:"logo"`
	LogoDark       string                     `json:"logo_dark"`
	PrimaryColor   string                     `json:"primary_color"`
	SecondaryColor string                     `json:"secondary_color"`
	ContactEmail   string                     `json:"contact_email"`
	ContactPhone   string                     `json:"contact_phone"`
	Address        string                     `json:"address"`
	SocialMedia    domain.SocialMediaSettings `json:"social_media"`
	Tracking       domain.TrackingSettings    `json:"tracking"`
}

// NewSettingsService creates a settings service. Gateway values from the
// environment seed the row when it is first created.
func NewSettingsService(db *gorm.DB, store *cache.Store, seed config.GatewayConfig) *SettingsService {
	return &SettingsService{
		db:    db,
		cache: store,
		seed: domain.EvolutionAPISettings{
			APIURL:        seed.APIURL,
			APIKey:        seed.APIKey,
			InstanceName:  seed.InstanceName,
			OperatorPhone: seed.OperatorPhone,
		},
	}
}

// Get returns the current settings, creating the default row on first use.
func (s *SettingsService) Get(ctx context.Context) (*domain.SiteSettings, error) {
	settings, err := s.load(ctx)
	if err != nil {
		if cached, ok := s.cached(); ok {
			log.Printf("[SETTINGS] Database read failed, serving cached settings: %v", err)
			metrics.RecordSettingsCacheFallback()
			return cached, nil
		}
		log.Printf("[SETTINGS] Get failed: database error: %v", err)
		return nil, apperrors.Internal("failed to load settings", err)
	}

	s.store(settings)
	return settings, nil
}

// Public returns the visitor-facing subset of the settings
func (s *SettingsService) Public(ctx context.Context) (*PublicSettings, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &PublicSettings{
		CompanyName:    settings.CompanyName,
		Logo:           settings.Logo,
		LogoDark:       settings.LogoDark,
		PrimaryColor:   settings.PrimaryColor,
		SecondaryColor: settings.SecondaryColor,
		ContactEmail:   settings.ContactEmail,
		ContactPhone:   settings.ContactPhone,
		Address:        settings.Address,
		SocialMedia:    settings.SocialMedia,
		Tracking:       settings.Tracking,
	}, nil
}

// Update persists general settings then refreshes the cache
func (s *SettingsService) Update(ctx context.Context, patch SettingsPatch) (*domain.SiteSettings, error) {
	settings, err := s.load(ctx)
	if err != nil {
		log.Printf("[SETTINGS] Update failed: database error: %v", err)
		return nil, apperrors.Internal("failed to load settings", err)
	}

	applyString(&settings.CompanyName, patch.CompanyName)
	applyString(&settings.Logo, patch.Logo)
	applyString(&settings.LogoDark, patch.LogoDark)
	applyString(&settings.PrimaryColor, patch.PrimaryColor)
	applyString(&settings.SecondaryColor, patch.SecondaryColor)
	applyString(&settings.ContactEmail, patch.ContactEmail)
	applyString(&settings.ContactPhone, patch.ContactPhone)
	applyString(&settings.Address, patch.Address)
	if patch.SocialMedia != nil {
		settings.SocialMedia = *patch.SocialMedia
	}
	if patch.Tracking != nil {
		settings.Tracking = *patch.Tracking
	}
	if patch.N8NConfig != nil {
		previousKey := settings.N8NConfig.APIKey
		settings.N8NConfig = *patch.N8NConfig
		if strings.HasPrefix(settings.N8NConfig.APIKey, maskPrefix) {
			settings.N8NConfig.APIKey = previousKey
		}
	}

	return s.save(ctx, settings)
}

// UpdateGateway persists messaging gateway credentials then refreshes the cache
func (s *SettingsService) UpdateGateway(ctx context.Context, patch GatewayPatch) (*domain.SiteSettings, error) {
	settings, err := s.load(ctx)
	if err != nil {
		log.Printf("[SETTINGS] UpdateGateway failed: database error: %v", err)
		return nil, apperrors.Internal("failed to load settings", err)
	}

	applyString(&settings.EvolutionAPI.APIURL, patch.APIURL)
	applyString(&settings.EvolutionAPI.InstanceName, patch.InstanceName)
	applyString(&settings.EvolutionAPI.OperatorPhone, patch.OperatorPhone)
	if patch.APIKey != nil {
		if key := strings.TrimSpace(*patch.APIKey); key != "" && !strings.HasPrefix(key, maskPrefix) {
			settings.EvolutionAPI.APIKey = key
		}
	}

	return s.save(ctx, settings)
}

// Refresh reloads the row from the database into the cache
func (s *SettingsService) Refresh(ctx context.Context) error {
	settings, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.store(settings)
	return nil
}

// Gateway returns the gateway credentials and the operator phone
func (s *SettingsService) Gateway(ctx context.Context) (gateway.Credentials, string, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return gateway.Credentials{}, "", err
	}
	evo := settings.EvolutionAPI
	return gateway.Credentials{
		APIURL:       evo.APIURL,
		APIKey:       evo.APIKey,
		InstanceName: evo.InstanceName,
	}, evo.OperatorPhone, nil
}

func (s *SettingsService) save(ctx context.Context, settings *domain.SiteSettings) (*domain.SiteSettings, error) {
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		log.Printf("[SETTINGS] Save failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save settings", err)
	}
	s.store(settings)
	log.Printf("[SETTINGS] Settings updated: id=%s", settings.ID)
	return settings, nil
}

func (s *SettingsService) load(ctx context.Context) (*domain.SiteSettings, error) {
	var settings domain.SiteSettings
	err := s.db.WithContext(ctx).Order("created_at ASC").First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	// Another request may have created it while we waited
	if err := s.db.WithContext(ctx).Order("created_at ASC").First(&settings).Error; err == nil {
		return &settings, nil
	}

	settings = domain.DefaultSiteSettings()
	settings.EvolutionAPI = s.seed
	if err := s.db.WithContext(ctx).Create(&settings).Error; err != nil {
		return nil, err
	}
	log.Printf("[SETTINGS] Default settings created: id=%s", settings.ID)
	return &settings, nil
}

func (s *SettingsService) cached() (*domain.SiteSettings, bool) {
	if s.cache == nil {
		return nil, false
	}
	var settings domain.SiteSettings
	found, err := s.cache.Get(settingsCacheKey, &settings)
	if err != nil {
		// An undecodable entry would shadow every later fallback until the next save
		log.Printf("[SETTINGS] Cache read failed, dropping entry: %v", err)
		if err := s.cache.Delete(settingsCacheKey); err != nil {
			log.Printf("[SETTINGS] Cache delete failed: %v", err)
		}
		return nil, false
	}
	return &settings, found
}

func (s *SettingsService) store(settings *domain.SiteSettings) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(settingsCacheKey, settings); err != nil {
		log.Printf("[SETTINGS] Cache write failed: %v", err)
	}
}

const maskPrefix = "****"

// MaskSecret hides all but the last four characters of a credential
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return maskPrefix
	}
	return maskPrefix + secret[len(secret)-4:]
}

// Masked returns a copy of settings with credentials masked
func Masked(settings *domain.SiteSettings) *domain.SiteSettings {
	out := *settings
	out.EvolutionAPI.APIKey = MaskSecret(settings.EvolutionAPI.APIKey)
	out.N8NConfig.APIKey = MaskSecret(settings.N8NConfig.APIKey)
	return &out
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
