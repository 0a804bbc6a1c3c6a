package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"realestate/internal/domain"
	apperrors "realestate/pkg/errors"
)

// AnalyticsService records funnel events and renders tracking snippets
type AnalyticsService struct {
	db       *gorm.DB
	settings *SettingsService
}

// AnalyticsEventInput describes an event reported by the site or the pipeline
type AnalyticsEventInput struct {
	EventType   string                 `json:"event_type" validate:"required,oneof=page_view view_item generate_lead contact use_calculator"`
	Data        map[string]interface{} `json:"data"`
	LeadID      *string                `json:"lead_id"`
	PropertyID  *string                `json:"property_id"`
	UserSession *string                `json:"user_session"`
	IPAddress   *string                `json:"-"`
	UserAgent   *string                `json:"-"`
}

// TrackingSnippet is a head snippet for one analytics provider
type TrackingSnippet struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	HTML     string `json:"html"`
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB, settings *SettingsService) *AnalyticsService {
	return &AnalyticsService{db: db, settings: settings}
}

// Record stores an analytics event
func (s *AnalyticsService) Record(ctx context.Context, in AnalyticsEventInput) (*domain.AnalyticsEvent, error) {
	in.EventType = strings.TrimSpace(in.EventType)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	data := in.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.Validation("data must be a JSON object")
	}

	event := &domain.AnalyticsEvent{
		EventType:   in.EventType,
		EventData:   datatypes.JSON(raw),
		LeadID:      trimPtr(in.LeadID),
		PropertyID:  trimPtr(in.PropertyID),
		UserSession: trimPtr(in.UserSession),
		IPAddress:   trimPtr(in.IPAddress),
		UserAgent:   trimPtr(in.UserAgent),
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		log.Printf("[ANALYTICS] Record failed: event=%s, database error: %v", in.EventType, err)
		return nil, apperrors.Internal("failed to record event", err)
	}
	return event, nil
}

// Snippets returns the head snippets for every configured tracking id
func (s *AnalyticsService) Snippets(ctx context.Context) ([]TrackingSnippet, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return RenderSnippets(settings.Tracking), nil
}

// RenderSnippets builds provider snippets, skipping unset ids
func RenderSnippets(tracking domain.TrackingSettings) []TrackingSnippet {
	snippets := []TrackingSnippet{}

	if id := strings.TrimSpace(tracking.GoogleAnalytics); id != "" {
		id = html.EscapeString(id)
		snippets = append(snippets, TrackingSnippet{
			Provider: "google_analytics",
			ID:       id,
			HTML: fmt.Sprintf(`<script async src="https://www.googletagmanager.com/gtag/js?id=%[1]s"></script>
<script>
  window.dataLayer = window.dataLayer || [];
  function gtag(){dataLayer.push(arguments);}
  gtag('js', new Date());
  gtag('config', '%[1]s');
</script>`, id),
		})
	}

	if id := strings.TrimSpace(tracking.FacebookPixel); id != "" {
		id = html.EscapeString(id)
		snippets = append(snippets, TrackingSnippet{
			Provider: "facebook_pixel",
			ID:       id,
			HTML: fmt.Sprintf(`<script>
  !function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?
  n.callMethod.apply(n,arguments):n.queue.push(arguments)};if(!f._fbq)f._fbq=n;
  n.push=n;n.loaded=!0;n.version='2.0';n.queue=[];t=b.createElement(e);t.async=!0;
  t.src=v;s=b.getElementsByTagName(e)[0];s.parentNode.insertBefore(t,s)}(window,
  document,'script','https://connect.facebook.net/en_US/fbevents.js');
  fbq('init', '%[1]s');
  fbq('track', 'PageView');
</script>
<noscript><img height="1" width="1" style="display:none" src="https://www.facebook.com/tr?id=%[1]s&ev=PageView&noscript=1"/></noscript>`, id),
		})
	}

	if id := strings.TrimSpace(tracking.GTMID); id != "" {
		id = html.EscapeString(id)
		snippets = append(snippets, TrackingSnippet{
			Provider: "google_tag_manager",
			ID:       id,
			HTML: fmt.Sprintf(`<script>(function(w,d,s,l,i){w[l]=w[l]||[];w[l].push({'gtm.start':
new Date().getTime(),event:'gtm.js'});var f=d.getElementsByTagName(s)[0],
j=d.createElement(s),dl=l!='dataLayer'?'&l='+l:'';j.async=true;j.src=
'https://www.googletagmanager.com/gtm.js?id='+i+dl;f.parentNode.insertBefore(j,f);
})(window,document,'script','dataLayer','%[1]s');</script>`, id),
		})
	}

	return snippets
}
