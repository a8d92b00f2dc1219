package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/registry"
)

const maxDownloadBytes = 25 << 20

// Ingestor accepts normalized messages into the processing pipeline.
type Ingestor interface {
	HandleInbound(ctx context.Context, msg channels.InboundMessage) error
}

// Manager runs one long-poll loop per connected bot. It reconciles
// against the account registry so bots start when a tenant connects and
// stop when the account is disconnected.
type Manager struct {
	registry    *registry.AccountRegistry
	resolver    channels.MediaResolver
	ingestor    Ingestor
	pollTimeout int

	mu      sync.Mutex
	bots    map[string]*tgbotapi.BotAPI // keyed by bot token
	running map[string]context.CancelFunc

	httpClient *http.Client
}

func NewManager(reg *registry.AccountRegistry, resolver channels.MediaResolver, ingestor Ingestor, pollTimeout int) *Manager {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Manager{
		registry:    reg,
		resolver:    resolver,
		ingestor:    ingestor,
		pollTimeout: pollTimeout,
		bots:        make(map[string]*tgbotapi.BotAPI),
		running:     make(map[string]context.CancelFunc),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Run reconciles poll loops against the registry until ctx ends. All
// loops are stopped before Run returns.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	m.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			m.stopAll()
			return
		case <-ticker.C:
			m.reconcile(ctx)
		}
	}
}

func (m *Manager) reconcile(ctx context.Context) {
	accounts := m.registry.ByChannel(channels.ChannelTelegram)
	wanted := make(map[string]registry.AccountInfo, len(accounts))
	for _, a := range accounts {
		wanted[a.ExternalID] = a
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cancel := range m.running {
		if _, ok := wanted[id]; !ok {
			logrus.WithField("external_id", id).Info("[TELEGRAM] Stopping poll loop")
			cancel()
			delete(m.running, id)
		}
	}
	for id, account := range wanted {
		if _, ok := m.running[id]; ok {
			continue
		}
		if err := m.startLocked(ctx, account); err != nil {
			logrus.WithError(err).WithField("external_id", id).Error("[TELEGRAM] Bot start failed")
		}
	}
}

func (m *Manager) startLocked(ctx context.Context, account registry.AccountInfo) error {
	bot, err := m.botLocked(account.AccessToken)
	if err != nil {
		return err
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = m.pollTimeout
	updates := bot.GetUpdatesChan(updateConfig)

	loopCtx, cancel := context.WithCancel(ctx)
	m.running[account.ExternalID] = cancel

	logrus.WithFields(logrus.Fields{
		"external_id": account.ExternalID,
		"tenant_id":   account.TenantID,
		"bot":         bot.Self.UserName,
	}).Info("[TELEGRAM] Poll loop started")

	go func() {
		defer func() {
			bot.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit; a stuck
			// long-poll session causes getUpdates conflicts on restart.
			for range updates {
			}
		}()
		for {
			select {
			case <-loopCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logrus.WithField("external_id", account.ExternalID).Info("[TELEGRAM] Updates channel closed")
					return
				}
				m.handleUpdate(loopCtx, bot, account, update)
			}
		}
	}()
	return nil
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.running {
		cancel()
		delete(m.running, id)
	}
}

// SetIngestor wires the pipeline after construction. The manager is built
// before the pipeline because the pipeline's senders need the bot cache.
func (m *Manager) SetIngestor(ingestor Ingestor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestor = ingestor
}

// bot returns a cached BotAPI instance for a token, creating it on first
// use. Shared with Sender and Alerter so outbound calls reuse the polling
// bot's session.
func (m *Manager) bot(token string) (*tgbotapi.BotAPI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botLocked(token)
}

func (m *Manager) botLocked(token string) (*tgbotapi.BotAPI, error) {
	if bot, ok := m.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot auth: %w", err)
	}
	m.bots[token] = bot
	return bot, nil
}

func (m *Manager) handleUpdate(ctx context.Context, bot *tgbotapi.BotAPI, account registry.AccountInfo, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	// Skip other bots and our own outbound messages.
	if msg.From.IsBot || msg.From.ID == bot.Self.ID {
		return
	}

	m.mu.Lock()
	ingestor := m.ingestor
	m.mu.Unlock()
	if ingestor == nil {
		return
	}

	inbound := m.normalize(ctx, bot, account, update)
	if inbound.Text == "" {
		return
	}
	if err := ingestor.HandleInbound(ctx, inbound); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"tenant_id":  account.TenantID,
			"contact_id": inbound.ContactID,
		}).Error("[TELEGRAM] Inbound dispatch failed")
	}
}

func (m *Manager) normalize(ctx context.Context, bot *tgbotapi.BotAPI, account registry.AccountInfo, update tgbotapi.Update) channels.InboundMessage {
	msg := update.Message
	inbound := channels.InboundMessage{
		TenantID:    account.TenantID,
		ContactID:   strconv.FormatInt(msg.Chat.ID, 10),
		ContactName: contactName(msg.From),
		Channel:     channels.ChannelTelegram,
		MessageType: channels.TypeText,
		MessageID:   "telegram:" + strconv.Itoa(update.UpdateID),
		ReceivedAt:  time.Unix(int64(msg.Date), 0).UTC(),
	}

	switch {
	case msg.Text != "":
		inbound.Text = msg.Text
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1] // largest size is last
		inbound.MessageType = channels.TypeImage
		inbound.Text = m.resolve(ctx, bot, channels.TypeImage, photo.FileID, &channels.Media{
			Type:    channels.TypeImage,
			Caption: msg.Caption,
		})
	case msg.Voice != nil:
		inbound.MessageType = channels.TypeVoice
		inbound.Text = m.resolve(ctx, bot, channels.TypeVoice, msg.Voice.FileID, &channels.Media{
			Type:     channels.TypeVoice,
			MimeType: msg.Voice.MimeType,
			FileName: "voice.ogg",
		})
	case msg.Video != nil:
		inbound.MessageType = channels.TypeVideo
		inbound.Text = m.resolve(ctx, bot, channels.TypeVideo, msg.Video.FileID, &channels.Media{
			Type:     channels.TypeVideo,
			MimeType: msg.Video.MimeType,
			Caption:  msg.Caption,
		})
	case msg.Document != nil:
		inbound.MessageType = channels.TypeDocument
		inbound.Text = m.resolve(ctx, bot, channels.TypeDocument, msg.Document.FileID, &channels.Media{
			Type:     channels.TypeDocument,
			MimeType: msg.Document.MimeType,
			FileName: msg.Document.FileName,
		})
	case msg.Sticker != nil:
		inbound.MessageType = channels.TypeSticker
		inbound.Text = m.resolver.Resolve(ctx, channels.TypeSticker, &channels.Media{
			Type:  channels.TypeSticker,
			Emoji: msg.Sticker.Emoji,
		})
	default:
		// Payload kinds we don't resolve still reach the agent as a
		// typed placeholder instead of being dropped. Service updates
		// carry no payload and produce no text, so they stay dropped.
		if kind := payloadKind(msg); kind != "" {
			inbound.Text = fmt.Sprintf("[Customer sent a %s]", kind)
		}
	}

	return inbound
}

func payloadKind(msg *tgbotapi.Message) string {
	switch {
	case msg.Contact != nil:
		return "contact"
	case msg.Location != nil:
		return "location"
	case msg.Venue != nil:
		return "venue"
	case msg.Poll != nil:
		return "poll"
	case msg.Audio != nil:
		return "audio file"
	case msg.Animation != nil:
		return "GIF"
	case msg.VideoNote != nil:
		return "video note"
	case msg.Dice != nil:
		return "dice"
	default:
		return ""
	}
}

// resolve downloads the file behind fileID into media and hands it to the
// media resolver. Download failures degrade to resolving with whatever
// metadata is already present.
func (m *Manager) resolve(ctx context.Context, bot *tgbotapi.BotAPI, msgType channels.MessageType, fileID string, media *channels.Media) string {
	url, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		logrus.WithError(err).Warn("[TELEGRAM] File URL lookup failed")
		return m.resolver.Resolve(ctx, msgType, media)
	}
	media.URL = url

	data, contentType, err := m.download(ctx, url)
	if err != nil {
		logrus.WithError(err).Warn("[TELEGRAM] File download failed")
		return m.resolver.Resolve(ctx, msgType, media)
	}
	media.Data = data
	if media.MimeType == "" {
		media.MimeType = contentType
	}
	return m.resolver.Resolve(ctx, msgType, media)
}

func (m *Manager) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func contactName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	return user.UserName
}
