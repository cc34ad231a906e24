package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService fans notification events out to active notifier bots.
// Delivery is best-effort: errors are logged and never propagated to the
// write that produced the event.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Dispatch sends the event to every active bot. A single failing bot does
// not stop delivery to the others.
func (s *NotificationService) Dispatch(ctx context.Context, event *Event) error {
	var bots []models.NotifierBot
	if err := s.db.Where("is_active = ?", true).Find(&bots).Error; err != nil {
		return err
	}
	if len(bots) == 0 {
		return nil
	}

	var lastErr error
	for i := range bots {
		if err := s.sendToBot(&bots[i], event); err != nil {
			logger.Warnf("[Notification] Bot %s (%s) failed: %v", bots[i].Name, bots[i].Type, err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *NotificationService) sendToBot(bot *models.NotifierBot, event *Event) error {
	switch bot.Type {
	case "wechat_work":
		return s.sendWeComNotification(bot, event)
	case "dingtalk":
		return s.sendDingTalkNotification(bot, event)
	case "feishu":
		return s.sendFeishuNotification(bot, event)
	case "slack":
		return s.sendSlackNotification(bot, event)
	default:
		return s.sendGenericWebhook(bot, event)
	}
}

// buildMessage renders a human-readable markdown summary of the event.
func (s *NotificationService) buildMessage(e *Event) string {
	var headline string
	switch e.Type {
	case EventProjectCreated:
		headline = fmt.Sprintf("🆕 **%s** created project **%s**", e.ActorName, e.ProjectName)
	case EventMemberInvited:
		headline = fmt.Sprintf("✉️ **%s** invited %s to **%s** as %s", e.ActorName, e.TargetEmail, e.ProjectName, e.Role)
	case EventMemberAccepted:
		headline = fmt.Sprintf("✅ **%s** joined **%s**", e.ActorName, e.ProjectName)
	case EventMemberDeclined:
		headline = fmt.Sprintf("❌ **%s** declined the invitation to **%s**", e.ActorName, e.ProjectName)
	case EventMemberRemoved:
		headline = fmt.Sprintf("➖ A member was removed from **%s**", e.ProjectName)
	case EventTaskUpdated:
		headline = fmt.Sprintf("📝 **%s** updated task **%s**", e.ActorName, e.TaskTitle)
	case EventTaskCompleted:
		headline = fmt.Sprintf("🏁 **%s** completed task **%s**", e.ActorName, e.TaskTitle)
	case EventBadgeAwarded:
		headline = fmt.Sprintf("🏅 Badge **%s** awarded", e.BadgeName)
	default:
		headline = fmt.Sprintf("📣 %s", e.Type)
	}

	msg := headline
	if e.ProjectName != "" && e.Type != EventProjectCreated {
		msg += fmt.Sprintf("\n\n**Project**: %s", e.ProjectName)
	}
	if e.Detail != "" {
		msg += fmt.Sprintf("\n\n%s", e.Detail)
	}
	return msg
}

func (s *NotificationService) sendWeComNotification(bot *models.NotifierBot, e *Event) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"content": s.buildMessage(e),
		},
	}
	return s.postJSON(bot.Webhook, payload)
}

func (s *NotificationService) sendDingTalkNotification(bot *models.NotifierBot, e *Event) error {
	webhookURL := bot.Webhook
	if bot.Secret != "" {
		timestamp := time.Now().UnixMilli()
		sign := s.dingTalkSign(timestamp, bot.Secret)
		webhookURL = fmt.Sprintf("%s&timestamp=%d&sign=%s", bot.Webhook, timestamp, url.QueryEscape(sign))
	}

	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": fmt.Sprintf("MakerPlan: %s", e.Type),
			"text":  s.buildMessage(e),
		},
	}
	return s.postJSON(webhookURL, payload)
}

func (s *NotificationService) dingTalkSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *NotificationService) sendFeishuNotification(bot *models.NotifierBot, e *Event) error {
	content := s.buildMessage(e)

	if bot.Secret != "" {
		timestamp := time.Now().Unix()
		payload := map[string]interface{}{
			"timestamp": fmt.Sprintf("%d", timestamp),
			"sign":      s.feishuSign(timestamp, bot.Secret),
			"msg_type":  "text",
			"content": map[string]string{
				"text": content,
			},
		}
		return s.postJSON(bot.Webhook, payload)
	}

	payload := map[string]interface{}{
		"msg_type": "text",
		"content": map[string]string{
			"text": content,
		},
	}
	return s.postJSON(bot.Webhook, payload)
}

func (s *NotificationService) feishuSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (s *NotificationService) sendSlackNotification(bot *models.NotifierBot, e *Event) error {
	text := s.buildMessage(e)
	payload := map[string]interface{}{
		"text": text,
		"blocks": []map[string]interface{}{
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	}
	return s.postJSON(bot.Webhook, payload)
}

func (s *NotificationService) sendGenericWebhook(bot *models.NotifierBot, e *Event) error {
	// Generic targets get the raw event
	return s.postJSON(bot.Webhook, e)
}

func (s *NotificationService) postJSON(webhookURL string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
