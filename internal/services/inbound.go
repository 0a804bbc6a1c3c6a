package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"realestate/internal/domain"
	"realestate/internal/gateway"
	"realestate/internal/metrics"
)

// Gateway events understood by the inbound relay
const (
	GatewayEventMessagesUpsert = "messages.upsert"
	GatewayEventMessagesUpdate = "messages.update"
	GatewayEventQRCodeUpdated  = "qrcode.updated"
)

const mediaPlaceholderBody = "Mídia recebida"

// InboundEvent is a push notification from the messaging gateway
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageKey struct {
	ID        string `json:"id"`
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
}

type messageContent struct {
	Conversation        *string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage    json.RawMessage `json:"imageMessage"`
	VideoMessage    json.RawMessage `json:"videoMessage"`
	AudioMessage    json.RawMessage `json:"audioMessage"`
	DocumentMessage json.RawMessage `json:"documentMessage"`
}

type upsertData struct {
	Key              messageKey      `json:"key"`
	Message          *messageContent `json:"message"`
	MessageTimestamp json.RawMessage `json:"messageTimestamp"`
}

type updateData struct {
	Key    messageKey `json:"key"`
	Update struct {
		Status json.RawMessage `json:"status"`
	} `json:"update"`
}

// InboundService persists messaging gateway events as WhatsAppMessage rows
type InboundService struct {
	db    *gorm.DB
	media gateway.MediaResolver
}

// NewInboundService creates an inbound relay. A nil resolver uses placeholders.
func NewInboundService(db *gorm.DB, media gateway.MediaResolver) *InboundService {
	if media == nil {
		media = gateway.PlaceholderResolver{}
	}
	return &InboundService{db: db, media: media}
}

// Handle dispatches one gateway event. A malformed payload for a known event
// is logged and dropped, as are persistence failures, so the gateway does not
// redeliver it.
func (s *InboundService) Handle(ctx context.Context, ev InboundEvent) error {
	switch ev.Event {
	case GatewayEventMessagesUpsert:
		metrics.RecordGatewayEvent(ev.Event)
		return s.handleUpsert(ctx, ev.Data)
	case GatewayEventMessagesUpdate:
		metrics.RecordGatewayEvent(ev.Event)
		return s.handleUpdate(ctx, ev.Data)
	case GatewayEventQRCodeUpdated:
		metrics.RecordGatewayEvent(ev.Event)
		log.Printf("[GATEWAY] QR code updated")
		return nil
	default:
		metrics.RecordGatewayEvent("unhandled")
		log.Printf("[GATEWAY] Unhandled event type: %q", ev.Event)
		return nil
	}
}

func (s *InboundService) handleUpsert(ctx context.Context, raw json.RawMessage) error {
	var data upsertData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[GATEWAY] Error handling message: invalid %s payload: %v", GatewayEventMessagesUpsert, err)
		return nil
	}
	if data.Key.ID == "" || data.Key.RemoteJID == "" {
		log.Printf("[GATEWAY] Error handling message: %s payload without message key", GatewayEventMessagesUpsert)
		return nil
	}
	if data.Message == nil {
		log.Printf("[GATEWAY] Error handling message %s: payload without message", data.Key.ID)
		return nil
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&domain.WhatsAppMessage{}).
		Where("evolution_message_id = ?", data.Key.ID).
		Count(&existing).Error; err != nil {
		log.Printf("[GATEWAY] Error handling message %s: %v", data.Key.ID, err)
		return nil
	}
	if existing > 0 {
		log.Printf("[GATEWAY] Duplicate message %s ignored", data.Key.ID)
		return nil
	}

	phone := PhoneFromJID(data.Key.RemoteJID)
	msgType := messageTypeOf(*data.Message)
	direction := domain.DirectionInbound
	if data.Key.FromMe {
		direction = domain.DirectionOutbound
	}

	msg := &domain.WhatsAppMessage{
		EvolutionMessageID: data.Key.ID,
		PhoneNumber:        phone,
		Message:            messageBody(*data.Message),
		MessageType:        msgType,
		Direction:          direction,
		Status:             "delivered",
		MediaURL:           s.media.ResolveMediaURL(ctx, data.Key.ID, msgType),
		LeadID:             s.linkLead(ctx, phone),
		CreatedAt:          parseEpoch(data.MessageTimestamp),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("[GATEWAY] Error handling message %s: %v", data.Key.ID, err)
		return nil
	}
	log.Printf("[GATEWAY] Message saved: id=%s, type=%s, direction=%s", msg.EvolutionMessageID, msg.MessageType, msg.Direction)
	return nil
}

func (s *InboundService) handleUpdate(ctx context.Context, raw json.RawMessage) error {
	var data updateData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[GATEWAY] Error handling message update: invalid %s payload: %v", GatewayEventMessagesUpdate, err)
		return nil
	}
	if data.Key.ID == "" {
		log.Printf("[GATEWAY] Error handling message update: %s payload without message key", GatewayEventMessagesUpdate)
		return nil
	}

	status := flexibleString(data.Update.Status)
	res := s.db.WithContext(ctx).Model(&domain.WhatsAppMessage{}).
		Where("evolution_message_id = ?", data.Key.ID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		log.Printf("[GATEWAY] Error handling message update %s: %v", data.Key.ID, res.Error)
		return nil
	}
	log.Printf("[GATEWAY] Message status updated: id=%s, status=%s, rows=%d", data.Key.ID, status, res.RowsAffected)
	return nil
}

// linkLead finds the most recent lead whose phone matches the sender
func (s *InboundService) linkLead(ctx context.Context, phone string) *string {
	if phone == "" {
		return nil
	}
	candidates := []string{phone, "+" + phone}
	if strings.HasPrefix(phone, "55") && len(phone) > 2 {
		candidates = append(candidates, phone[2:])
	}

	var lead domain.Lead
	err := s.db.WithContext(ctx).
		Select("id").
		Where("phone IN ?", candidates).
		Order("created_at DESC").
		Limit(1).
		Find(&lead).Error
	if err != nil || lead.ID == "" {
		return nil
	}
	return &lead.ID
}

// PhoneFromJID strips the "@server" suffix from a WhatsApp JID
func PhoneFromJID(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// messageTypeOf derives the message type from which payload shape is present.
// Extended text (links, replies) is not one of the tracked shapes and stays
// unknown; its body is still kept by messageBody.
func messageTypeOf(m messageContent) string {
	switch {
	case m.Conversation != nil && *m.Conversation != "":
		return domain.MessageTypeText
	case present(m.ImageMessage):
		return domain.MessageTypeImage
	case present(m.VideoMessage):
		return domain.MessageTypeVideo
	case present(m.AudioMessage):
		return domain.MessageTypeAudio
	case present(m.DocumentMessage):
		return domain.MessageTypeDocument
	default:
		return domain.MessageTypeUnknown
	}
}

func messageBody(m messageContent) string {
	if m.Conversation != nil && *m.Conversation != "" {
		return *m.Conversation
	}
	if m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text
	}
	return mediaPlaceholderBody
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// parseEpoch reads gateway epoch seconds given as a number or numeric string. Missing means now.
func parseEpoch(raw json.RawMessage) time.Time {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return time.Now()
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs <= 0 {
		return time.Now()
	}
	return time.UnixMilli(int64(secs * 1000))
}

// flexibleString accepts a JSON string or number
func flexibleString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
