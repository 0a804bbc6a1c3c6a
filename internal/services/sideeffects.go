package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"realestate/internal/domain"
	"realestate/internal/gateway"
	"realestate/internal/metrics"
	apperrors "realestate/pkg/errors"
)

// TextSender delivers a text message through the messaging gateway
type TextSender interface {
	SendText(ctx context.Context, creds gateway.Credentials, number, text string) error
}

// LeadNotifier tells the operator about new leads over WhatsApp
type LeadNotifier struct {
	settings  *SettingsService
	templates *TemplateService
	sender    TextSender
}

// NewLeadNotifier creates a notifier
func NewLeadNotifier(settings *SettingsService, templates *TemplateService, sender TextSender) *LeadNotifier {
	return &LeadNotifier{settings: settings, templates: templates, sender: sender}
}

// Notify sends the new-lead message to the operator phone. It returns
// gateway.ErrNotConfigured when credentials or the operator phone are missing.
func (n *LeadNotifier) Notify(ctx context.Context, lead *domain.Lead) error {
	creds, operatorPhone, err := n.settings.Gateway(ctx)
	if err != nil {
		return err
	}
	if !creds.Valid() || operatorPhone == "" {
		metrics.RecordGatewayMessage("not_configured")
		return gateway.ErrNotConfigured
	}

	if err := n.sender.SendText(ctx, creds, operatorPhone, n.message(ctx, lead)); err != nil {
		metrics.RecordGatewayMessage("failed")
		return err
	}
	metrics.RecordGatewayMessage("sent")
	return nil
}

// SendTest sends a connectivity check message to the operator phone
func (n *LeadNotifier) SendTest(ctx context.Context) error {
	creds, operatorPhone, err := n.settings.Gateway(ctx)
	if err != nil {
		return err
	}
	if !creds.Valid() || operatorPhone == "" {
		return apperrors.New(apperrors.ErrCodeGatewayNotConfigured, "messaging gateway is not configured")
	}

	text := fmt.Sprintf("✅ Teste de integração Evolution API\n\n⏰ %s", formatBRDate(time.Now()))
	if err := n.sender.SendText(ctx, creds, operatorPhone, text); err != nil {
		log.Printf("[GATEWAY] Test message failed: %v", err)
		return apperrors.Wrap(apperrors.ErrCodeGatewaySendFailed, "failed to send test message", err)
	}
	log.Printf("[GATEWAY] Test message sent")
	return nil
}

func (n *LeadNotifier) message(ctx context.Context, lead *domain.Lead) string {
	if n.templates != nil {
		tpl, err := n.templates.ActiveByType(ctx, domain.TemplateTypeNewLead)
		if err != nil {
			log.Printf("[LEADS] Template lookup failed, using default message: %v", err)
		} else if tpl != nil {
			return Render(tpl, leadTemplateValues(lead))
		}
	}
	return OperatorMessage(lead)
}

func leadTemplateValues(lead *domain.Lead) map[string]string {
	return map[string]string{
		"name":     lead.Name,
		"email":    valueOr(lead.Email, ""),
		"phone":    lead.Phone,
		"property": lead.PropertyTitle,
		"source":   lead.LeadSource,
		"message":  valueOr(lead.Message, ""),
		"date":     formatBRDate(lead.CreatedAt),
	}
}

// OperatorMessage is the built-in new-lead notification text
func OperatorMessage(lead *domain.Lead) string {
	var b strings.Builder
	b.WriteString("🏠 *NOVO LEAD CAPTADO*\n\n")
	fmt.Fprintf(&b, "👤 *Nome:* %s\n", lead.Name)
	fmt.Fprintf(&b, "📧 *Email:* %s\n", valueOr(lead.Email, "Não informado"))
	fmt.Fprintf(&b, "📱 *Telefone:* %s\n", lead.Phone)
	if lead.PropertyTitle != "" {
		fmt.Fprintf(&b, "🏡 *Imóvel:* %s\n", lead.PropertyTitle)
	}
	if lead.LeadSource != "" {
		fmt.Fprintf(&b, "📊 *Origem:* %s\n", lead.LeadSource)
	}
	if msg := valueOr(lead.Message, ""); msg != "" {
		fmt.Fprintf(&b, "\n💬 *Mensagem:*\n%s\n", msg)
	}
	fmt.Fprintf(&b, "\n⏰ *Data:* %s\n\n", formatBRDate(lead.CreatedAt))
	b.WriteString("*Entre em contato o quanto antes para maximizar a conversão!*")
	return b.String()
}

var brLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.UTC
	}
	return loc
}()

func formatBRDate(t time.Time) string {
	return t.In(brLocation).Format("02/01/2006, 15:04:05")
}

// RequestMeta describes the visitor request that produced a lead or event
type RequestMeta struct {
	IPAddress   *string
	UserAgent   *string
	UserSession *string
}

// LeadSideEffects runs the best-effort steps that follow a committed lead.
// Steps run in a fixed order and each failure is logged without affecting the rest.
type LeadSideEffects struct {
	notifier  *LeadNotifier
	analytics *AnalyticsService
	email     *EmailService
	settings  *SettingsService
	webhooks  *WebhookService
}

// NewLeadSideEffects wires the post-commit steps. Any dependency may be nil to skip its step.
func NewLeadSideEffects(notifier *LeadNotifier, analytics *AnalyticsService, email *EmailService, settings *SettingsService, webhooks *WebhookService) *LeadSideEffects {
	return &LeadSideEffects{
		notifier:  notifier,
		analytics: analytics,
		email:     email,
		settings:  settings,
		webhooks:  webhooks,
	}
}

// Run executes notify, analytics, email and fan-out for lead
func (e *LeadSideEffects) Run(ctx context.Context, lead *domain.Lead, meta RequestMeta) {
	if e.notifier != nil {
		e.step("notify", lead, func() error { return e.notifier.Notify(ctx, lead) })
	}

	if e.analytics != nil {
		e.step("analytics", lead, func() error {
			data := map[string]interface{}{
				"event_category": "conversion",
				"lead_source":    lead.LeadSource,
				"value":          1,
			}
			if lead.PropertyID != nil {
				data["property_id"] = *lead.PropertyID
			}
			_, err := e.analytics.Record(ctx, AnalyticsEventInput{
				EventType:   domain.AnalyticsGenerateLead,
				Data:        data,
				LeadID:      &lead.ID,
				PropertyID:  lead.PropertyID,
				UserSession: meta.UserSession,
				IPAddress:   meta.IPAddress,
				UserAgent:   meta.UserAgent,
			})
			return err
		})
	}

	if e.email != nil && e.email.IsEnabled() && e.settings != nil {
		e.step("email", lead, func() error {
			settings, err := e.settings.Get(ctx)
			if err != nil {
				return err
			}
			return e.email.SendLeadNotification(settings.ContactEmail, lead)
		})
	}

	if e.webhooks != nil {
		e.step("fanout", lead, func() error {
			_, err := e.webhooks.Trigger(ctx, domain.EventNewLead, lead)
			return err
		})
	}
}

func (e *LeadSideEffects) step(name string, lead *domain.Lead, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[LEADS] Side effect %s panicked for lead id=%s: %v", name, lead.ID, r)
			metrics.RecordSideEffectFailure(name)
		}
	}()

	err := fn()
	if err == nil {
		return
	}

	metrics.RecordSideEffectFailure(name)
	if errors.Is(err, gateway.ErrNotConfigured) {
		log.Printf("[LEADS] Configuration problem: messaging gateway not configured, operator not notified for lead id=%s", lead.ID)
		return
	}
	log.Printf("[LEADS] Warning: side effect %s failed for lead id=%s: %v", name, lead.ID, err)
}
