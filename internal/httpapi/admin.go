package httpapi

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"realestate/internal/services"
	apperrors "realestate/pkg/errors"
)

const maxUploadBytes = 10 << 20

type statusRequest struct {
	Status string `json:"status"`
}

type uploadResult struct {
	URL string `json:"url"`
}

type messageResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) leadFilter(r *http.Request) (services.LeadFilter, error) {
	q := r.URL.Query()
	f := services.LeadFilter{Status: q.Get("status"), Source: q.Get("source")}
	var err error
	if f.Skip, err = queryInt(r, "skip", 0); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := s.leadFilter(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	leads, err := s.deps.Leads.List(ctx, filter)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, leads)
}

func (s *Server) leadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Leads.Stats(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (s *Server) exportLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := s.leadFilter(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	// Buffer so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := s.deps.Leads.ExportCSV(ctx, &buf, filter); err != nil {
		writeError(ctx, w, err)
		return
	}

	filename := fmt.Sprintf("leads-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[LEADS] Export write failed: %v", err)
	}
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.deps.Leads.Get(r.Context(), s.pathID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, lead)
}

func (s *Server) patchLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch services.LeadPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(ctx, w, err)
		return
	}
	lead, err := s.deps.Leads.Update(ctx, s.pathID(r), patch)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, lead)
}

func (s *Server) updateLeadStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	lead, err := s.deps.Leads.UpdateStatus(ctx, s.pathID(r), req.Status)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, lead)
}

func (s *Server) createProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.PropertyInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	property, err := s.deps.Properties.Create(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, property)
}

func (s *Server) updateProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.PropertyInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	property, err := s.deps.Properties.Update(ctx, s.pathID(r), in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, property)
}

func (s *Server) deleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Properties.Delete(r.Context(), s.pathID(r)); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(ctx, w, apperrors.BadRequest("invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(ctx, w, apperrors.BadRequest("file field is required"))
		return
	}
	defer file.Close()

	url, err := s.deps.Properties.UploadImage(ctx, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, uploadResult{URL: url})
}

func (s *Server) adminSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, services.Masked(settings))
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch services.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(ctx, w, err)
		return
	}
	settings, err := s.deps.Settings.Update(ctx, patch)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, services.Masked(settings))
}

func (s *Server) updateGateway(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch services.GatewayPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(ctx, w, err)
		return
	}
	settings, err := s.deps.Settings.UpdateGateway(ctx, patch)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, services.Masked(settings))
}

func (s *Server) testGateway(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notifier.SendTest(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, messageResult{Success: true, Message: "test message sent"})
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.deps.Templates.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, templates)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.TemplateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	tpl, err := s.deps.Templates.Create(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, tpl)
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.deps.Webhooks.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, hooks)
}

func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.WebhookInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	hook, err := s.deps.Webhooks.Create(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, hook)
}

func (s *Server) updateWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.WebhookInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	hook, err := s.deps.Webhooks.Update(ctx, s.pathID(r), in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, hook)
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Webhooks.Delete(r.Context(), s.pathID(r)); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := s.deps.Webhooks.Toggle(r.Context(), s.pathID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, hook)
}

func (s *Server) testWebhook(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Webhooks.Test(r.Context(), s.pathID(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, result)
}

func (s *Server) userID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(s.pathID(r), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NotFound("user not found")
	}
	return uint(id), nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	users, err := s.deps.Auth.ListUsers(ctx, skip, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.CreateUserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	user, err := s.deps.Auth.CreateUser(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := s.userID(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var in services.UpdateUserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	user, err := s.deps.Auth.UpdateUser(ctx, id, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, user)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := s.userID(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	current, _ := UserFromContext(ctx)
	if err := s.deps.Auth.DeleteUser(ctx, current, id); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
