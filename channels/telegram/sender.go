package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/registry"
)

// Sender delivers agent replies through the tenant's connected bot. Media
// markers in the reply become separate photo and video sends.
type Sender struct {
	registry *registry.AccountRegistry
	manager  *Manager
}

func NewSender(reg *registry.AccountRegistry, manager *Manager) *Sender {
	return &Sender{registry: reg, manager: manager}
}

func (s *Sender) Send(ctx context.Context, tenantID, contactID, reply string) (channels.SendResult, error) {
	var result channels.SendResult

	bot, err := s.botForTenant(tenantID)
	if err != nil {
		return result, err
	}
	chatID, err := strconv.ParseInt(contactID, 10, 64)
	if err != nil {
		return result, errors.New("telegram contact id must be a chat id: " + contactID)
	}

	text, imageURLs, videoURLs := channels.ParseMediaTags(reply)

	var lastErr error
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if _, err := bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			logrus.WithError(err).Error("[TELEGRAM] Text send failed")
			lastErr = err
			break
		}
		result.TextSent = true
	}
	for _, url := range imageURLs {
		if _, err := bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("[TELEGRAM] Photo send failed")
			result.ImagesFailed++
			lastErr = err
		} else {
			result.ImagesSent++
		}
	}
	for _, url := range videoURLs {
		if _, err := bot.Send(tgbotapi.NewVideo(chatID, tgbotapi.FileURL(url))); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("[TELEGRAM] Video send failed")
			result.VideosFailed++
			lastErr = err
		} else {
			result.VideosSent++
		}
	}

	if !result.Delivered() && lastErr != nil {
		return result, lastErr
	}
	return result, nil
}

const maxMessageLength = 4096

// splitMessage breaks text into Bot API sized chunks, preferring newline
// boundaries.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if trimmed := strings.TrimSpace(string(runes)); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}

func (s *Sender) botForTenant(tenantID string) (*tgbotapi.BotAPI, error) {
	for _, account := range s.registry.ByTenant(tenantID) {
		if account.Channel == channels.ChannelTelegram {
			return s.manager.bot(account.AccessToken)
		}
	}
	return nil, errors.New("no connected telegram account for tenant")
}
