package services

import (
	"fmt"
	"html"
	"log"
	"net/smtp"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"realestate/internal/config"
	"realestate/internal/domain"
)

// EmailService handles sending emails
type EmailService struct {
	cfg      *config.EmailConfig
	sgClient *sendgrid.Client
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	if cfg.Provider == "sendgrid" && cfg.SendgridAPIKey != "" {
		s.sgClient = sendgrid.NewSendClient(cfg.SendgridAPIKey)
	}
	return s
}

// IsEnabled returns whether email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.cfg.Enabled
}

// SendLeadNotification emails the operator about a new lead
func (s *EmailService) SendLeadNotification(to string, lead *domain.Lead) error {
	if to == "" {
		return fmt.Errorf("no operator email configured")
	}

	subject := fmt.Sprintf("Novo lead: %s", lead.Name)
	email := valueOr(lead.Email, "Não informado")
	message := valueOr(lead.Message, "")
	submitted := lead.CreatedAt.Format("02/01/2006 15:04")

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Novo lead</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #1e40af;">Novo lead captado</h2>

        <div style="background: #F8FAFC; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <p><strong>Nome:</strong> %s</p>
            <p><strong>Email:</strong> %s</p>
            <p><strong>Telefone:</strong> %s</p>
            <p><strong>Imóvel:</strong> %s</p>
            <p><strong>Origem:</strong> %s</p>
            <p><strong>Data:</strong> %s</p>
        </div>

        <div style="background: #FFFFFF; padding: 20px; border-left: 4px solid #1e40af; border-radius: 4px; margin: 20px 0;">
            <h3 style="margin-top: 0;">Mensagem:</h3>
            <p style="white-space: pre-wrap;">%s</p>
        </div>

        <p style="color: #64748B; font-size: 14px;">Lead ID: %s</p>
    </div>
</body>
</html>`,
		html.EscapeString(lead.Name), html.EscapeString(email), html.EscapeString(lead.Phone),
		html.EscapeString(lead.PropertyTitle), html.EscapeString(lead.LeadSource), submitted,
		html.EscapeString(message), lead.ID)

	textBody := fmt.Sprintf(`Novo lead captado

Nome: %s
Email: %s
Telefone: %s
Imóvel: %s
Origem: %s
Data: %s

Mensagem:
%s

Lead ID: %s`, lead.Name, email, lead.Phone, lead.PropertyTitle, lead.LeadSource, submitted, message, lead.ID)

	return s.SendHTMLEmail(to, subject, htmlBody, textBody)
}

// SendHTMLEmail sends a multipart email through the configured provider
func (s *EmailService) SendHTMLEmail(to, subject, htmlBody, textBody string) error {
	if !s.cfg.Enabled || s.cfg.Provider == "console" {
		log.Printf("[EMAIL] Would send to %s: %s", to, subject)
		return nil
	}

	switch s.cfg.Provider {
	case "sendgrid":
		return s.sendWithSendgrid(to, subject, htmlBody, textBody)
	case "smtp", "":
		return s.sendWithSMTP(to, subject, htmlBody, textBody)
	default:
		return fmt.Errorf("unknown email provider %q", s.cfg.Provider)
	}
}

func (s *EmailService) sendWithSendgrid(to, subject, htmlBody, textBody string) error {
	if s.sgClient == nil {
		return fmt.Errorf("email service not properly configured")
	}

	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), textBody, htmlBody)

	resp, err := s.sgClient.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status=%d", resp.StatusCode)
	}
	return nil
}

func (s *EmailService) sendWithSMTP(to, subject, htmlBody, textBody string) error {
	// Validate configuration
	if s.cfg.SMTPHost == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("email service not properly configured")
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)

	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}

	boundary := fmt.Sprintf("----=_NextPart_%d", time.Now().UnixNano())

	headers := fmt.Sprintf("From: %s\r\n", from) +
		fmt.Sprintf("To: %s\r\n", to) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"MIME-Version: 1.0\r\n" +
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary) +
		"\r\n"

	message := headers +
		fmt.Sprintf("--%s\r\n", boundary) +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		textBody + "\r\n"

	if htmlBody != "" {
		message += fmt.Sprintf("--%s\r\n", boundary) +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			htmlBody + "\r\n"
	}

	message += fmt.Sprintf("--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.cfg.FromEmail, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
