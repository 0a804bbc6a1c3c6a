// Package httpapi exposes the services over HTTP using the goa muxer and codecs.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"

	"realestate/internal/config"
	"realestate/internal/metrics"
	"realestate/internal/services"
	"realestate/internal/util"
)

// Deps are the services served by the API
type Deps struct {
	Config     *config.Config
	Leads      *services.LeadService
	Calculator *services.CalculatorService
	Properties *services.PropertyService
	Settings   *services.SettingsService
	Notifier   *services.LeadNotifier
	Analytics  *services.AnalyticsService
	Templates  *services.TemplateService
	Webhooks   *services.WebhookService
	Inbound    *services.InboundService
	Auth       *services.AuthService
	Health     *services.HealthService
	Limiter    *util.RateLimiter
}

// Server holds the handlers and their muxer
type Server struct {
	deps Deps
	mux  goahttp.Muxer
}

// New mounts every route on a goa muxer
func New(deps Deps) *Server {
	s := &Server{deps: deps, mux: goahttp.NewMuxer()}
	s.mount()
	return s
}

// Handler returns the full middleware chain:
// security -> CORS -> request id -> request context -> logging -> prometheus -> routes
func (s *Server) Handler() http.Handler {
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			promhttp.Handler().ServeHTTP(w, r)
			return
		}
		s.mux.ServeHTTP(w, r)
	})

	var h http.Handler = metrics.PrometheusMiddleware(root)
	h = requestLogging(h)
	h = middleware.PopulateRequestContext()(h)
	h = middleware.RequestID()(h)
	h = corsHandler(h, s.deps.Config)
	return securityHeaders(h, s.deps.Config)
}

func (s *Server) mount() {
	m := s.mux
	staff := func(h http.HandlerFunc) http.HandlerFunc { return requireUser(s.deps.Auth, false, h) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return requireUser(s.deps.Auth, true, h) }

	m.Handle(http.MethodGet, "/health", s.health)

	// Gateway and automation relays
	m.Handle(http.MethodPost, "/evolution-webhook", s.evolutionWebhook)
	m.Handle(http.MethodPost, "/n8n-trigger", s.n8nTrigger)

	// Public site
	m.Handle(http.MethodPost, "/api/v1/leads", s.submitLead)
	m.Handle(http.MethodPost, "/api/v1/calculator/simulate", s.simulate)
	m.Handle(http.MethodPost, "/api/v1/calculator/lead", s.calculatorLead)
	m.Handle(http.MethodGet, "/api/v1/properties", s.listProperties)
	m.Handle(http.MethodGet, "/api/v1/properties/{id}", s.getProperty)
	m.Handle(http.MethodPost, "/api/v1/properties/{id}/view", s.viewProperty)
	m.Handle(http.MethodGet, "/api/v1/settings", s.publicSettings)
	m.Handle(http.MethodPost, "/api/v1/analytics/events", s.recordAnalytics)
	m.Handle(http.MethodGet, "/api/v1/analytics/snippets", s.analyticsSnippets)

	// Auth
	m.Handle(http.MethodPost, "/api/v1/auth/login", s.login)
	m.Handle(http.MethodGet, "/api/v1/auth/me", staff(s.me))

	// Lead dashboard
	m.Handle(http.MethodGet, "/api/v1/admin/leads", staff(s.listLeads))
	m.Handle(http.MethodGet, "/api/v1/admin/leads/stats", staff(s.leadStats))
	m.Handle(http.MethodGet, "/api/v1/admin/leads/export", staff(s.exportLeads))
	m.Handle(http.MethodGet, "/api/v1/admin/leads/{id}", staff(s.getLead))
	m.Handle(http.MethodPatch, "/api/v1/admin/leads/{id}", staff(s.patchLead))
	m.Handle(http.MethodPatch, "/api/v1/admin/leads/{id}/status", staff(s.updateLeadStatus))

	// Property manager
	m.Handle(http.MethodPost, "/api/v1/admin/properties", staff(s.createProperty))
	m.Handle(http.MethodPut, "/api/v1/admin/properties/{id}", staff(s.updateProperty))
	m.Handle(http.MethodDelete, "/api/v1/admin/properties/{id}", staff(s.deleteProperty))
	m.Handle(http.MethodPost, "/api/v1/admin/uploads", staff(s.uploadImage))

	// Settings and integrations
	m.Handle(http.MethodGet, "/api/v1/admin/settings", staff(s.adminSettings))
	m.Handle(http.MethodPut, "/api/v1/admin/settings", admin(s.updateSettings))
	m.Handle(http.MethodPut, "/api/v1/admin/settings/gateway", admin(s.updateGateway))
	m.Handle(http.MethodPost, "/api/v1/admin/gateway/test", staff(s.testGateway))
	m.Handle(http.MethodGet, "/api/v1/admin/templates", staff(s.listTemplates))
	m.Handle(http.MethodPost, "/api/v1/admin/templates", staff(s.createTemplate))
	m.Handle(http.MethodGet, "/api/v1/admin/webhooks", staff(s.listWebhooks))
	m.Handle(http.MethodPost, "/api/v1/admin/webhooks", admin(s.createWebhook))
	m.Handle(http.MethodPut, "/api/v1/admin/webhooks/{id}", admin(s.updateWebhook))
	m.Handle(http.MethodDelete, "/api/v1/admin/webhooks/{id}", admin(s.deleteWebhook))
	m.Handle(http.MethodPost, "/api/v1/admin/webhooks/{id}/toggle", admin(s.toggleWebhook))
	m.Handle(http.MethodPost, "/api/v1/admin/webhooks/{id}/test", staff(s.testWebhook))

	// Users
	m.Handle(http.MethodGet, "/api/v1/admin/users", admin(s.listUsers))
	m.Handle(http.MethodPost, "/api/v1/admin/users", admin(s.createUser))
	m.Handle(http.MethodPut, "/api/v1/admin/users/{id}", admin(s.updateUser))
	m.Handle(http.MethodDelete, "/api/v1/admin/users/{id}", admin(s.deleteUser))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.deps.Health.Check(r.Context()))
}

func (s *Server) pathID(r *http.Request) string {
	return s.mux.Vars(r)["id"]
}
