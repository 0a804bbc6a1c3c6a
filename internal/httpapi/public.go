package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"realestate/internal/services"
	"realestate/internal/util"
	apperrors "realestate/pkg/errors"
)

type leadCreated struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type calculatorLeadCreated struct {
	ID         string                    `json:"id"`
	Message    string                    `json:"message"`
	Simulation *services.FinancingResult `json:"simulation"`
}

const leadThanks = "Obrigado! Entraremos em contato em breve."

// allowSubmission throttles repeated submissions from one visitor or phone
func (s *Server) allowSubmission(r *http.Request, phone string) error {
	keys := []string{"ip:" + clientIP(r)}
	if p := util.NormalizeIdentifier(phone); p != "" {
		keys = append(keys, "phone:"+p)
	}
	if err := s.deps.Limiter.Allow(keys...); err != nil {
		var rl *util.RateLimitError
		if errors.As(err, &rl) {
			return apperrors.New(apperrors.ErrCodeRateLimited, rl.Error())
		}
		return err
	}
	return nil
}

func (s *Server) submitLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in services.LeadInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Phone) != "" {
		if err := s.allowSubmission(r, in.Phone); err != nil {
			writeError(ctx, w, err)
			return
		}
	}

	lead, err := s.deps.Leads.Submit(ctx, in, requestMeta(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, leadCreated{ID: lead.ID, Message: leadThanks})
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in services.FinancingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	result, err := s.deps.Calculator.Simulate(ctx, in, requestMeta(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

func (s *Server) calculatorLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in services.FinancingLeadInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Phone) != "" {
		if err := s.allowSubmission(r, in.Phone); err != nil {
			writeError(ctx, w, err)
			return
		}
	}

	lead, result, err := s.deps.Calculator.SubmitLead(ctx, in, requestMeta(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, calculatorLeadCreated{ID: lead.ID, Message: leadThanks, Simulation: result})
}

func (s *Server) listProperties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := services.PropertyFilter{
		Type:     q.Get("type"),
		Status:   q.Get("status"),
		Location: q.Get("location"),
	}
	var err error
	if filter.Featured, err = queryBoolPtr(r, "featured"); err != nil {
		writeError(ctx, w, err)
		return
	}
	if filter.MinPrice, err = queryFloatPtr(r, "min_price"); err != nil {
		writeError(ctx, w, err)
		return
	}
	if filter.MaxPrice, err = queryFloatPtr(r, "max_price"); err != nil {
		writeError(ctx, w, err)
		return
	}
	if raw := q.Get("bedrooms"); raw != "" {
		n, err := queryInt(r, "bedrooms", 0)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		filter.MinBedrooms = &n
	}

	properties, err := s.deps.Properties.List(ctx, filter)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, properties)
}

func (s *Server) getProperty(w http.ResponseWriter, r *http.Request) {
	property, err := s.deps.Properties.Get(r.Context(), s.pathID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, property)
}

func (s *Server) viewProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Properties.RecordView(r.Context(), s.pathID(r), requestMeta(r)); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) publicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Public(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, settings)
}

func (s *Server) recordAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in services.AnalyticsEventInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	meta := requestMeta(r)
	in.IPAddress = meta.IPAddress
	in.UserAgent = meta.UserAgent
	if in.UserSession == nil {
		in.UserSession = meta.UserSession
	}

	event, err := s.deps.Analytics.Record(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, event)
}

func (s *Server) analyticsSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := s.deps.Analytics.Snippets(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, snippets)
}
