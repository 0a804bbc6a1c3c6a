package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	goahttp "goa.design/goa/v3/http"

	"realestate/internal/services"
)

type relayError struct {
	Error string `json:"error"`
}

type relaySuccess struct {
	Success bool `json:"success"`
}

type triggerRequest struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type triggerResponse struct {
	Success           bool                     `json:"success"`
	WebhooksTriggered int                      `json:"webhooksTriggered"`
	Results           []services.TriggerResult `json:"results"`
}

// evolutionWebhook persists messaging gateway events. Only an undecodable
// body answers 500; everything else answers 200 {success:true}.
func (s *Server) evolutionWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if token := s.deps.Config.Gateway.WebhookToken; token != "" && !validRelayToken(r, token) {
		log.Printf("[GATEWAY] Rejected inbound webhook from %s: bad token", clientIP(r))
		writeJSON(ctx, w, http.StatusUnauthorized, relayError{Error: "invalid webhook token"})
		return
	}

	var ev services.InboundEvent
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := goahttp.RequestDecoder(r).Decode(&ev); err != nil {
		log.Printf("[GATEWAY] Error processing webhook: %v", err)
		writeJSON(ctx, w, http.StatusInternalServerError, relayError{Error: err.Error()})
		return
	}
	log.Printf("[GATEWAY] Webhook received: event=%s", ev.Event)

	if err := s.deps.Inbound.Handle(ctx, ev); err != nil {
		log.Printf("[GATEWAY] Error processing webhook: %v", err)
		writeJSON(ctx, w, http.StatusInternalServerError, relayError{Error: err.Error()})
		return
	}
	writeJSON(ctx, w, http.StatusOK, relaySuccess{Success: true})
}

func validRelayToken(r *http.Request, token string) bool {
	got := r.Header.Get("X-Webhook-Token")
	if got == "" {
		got = r.Header.Get("apikey")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// n8nTrigger fans an event out to the matching active registrations
func (s *Server) n8nTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req triggerRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := goahttp.RequestDecoder(r).Decode(&req); err != nil {
		log.Printf("[WEBHOOK] Error in trigger: %v", err)
		writeJSON(ctx, w, http.StatusInternalServerError, relayError{Error: err.Error()})
		return
	}
	req.EventType = strings.TrimSpace(req.EventType)
	if req.EventType == "" {
		writeJSON(ctx, w, http.StatusInternalServerError, relayError{Error: "eventType is required"})
		return
	}

	var data interface{} = req.Data
	if len(req.Data) == 0 {
		data = map[string]interface{}{}
	}

	// A started fan-out runs to completion even if the caller goes away
	results, err := s.deps.Webhooks.Trigger(context.WithoutCancel(ctx), req.EventType, data)
	if err != nil {
		log.Printf("[WEBHOOK] Error in trigger: %v", err)
		writeJSON(ctx, w, http.StatusInternalServerError, relayError{Error: "failed to trigger webhooks"})
		return
	}
	writeJSON(ctx, w, http.StatusOK, triggerResponse{
		Success:           true,
		WebhooksTriggered: len(results),
		Results:           results,
	})
}
