package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/registry"
)

type recordingIngestor struct {
	mu   sync.Mutex
	msgs []channels.InboundMessage
}

func (r *recordingIngestor) HandleInbound(_ context.Context, msg channels.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

type placeholderResolver struct{}

func (placeholderResolver) Resolve(_ context.Context, msgType channels.MessageType, media *channels.Media) string {
	if msgType == channels.TypeSticker && media != nil && media.Emoji != "" {
		return "[Customer sent a sticker with emoji: " + media.Emoji + "]"
	}
	return "[resolved " + string(msgType) + "]"
}

func testAccount() registry.AccountInfo {
	return registry.AccountInfo{
		ExternalID:  "bot-1",
		TenantID:    "tenant-1",
		Channel:     channels.ChannelTelegram,
		AccessToken: "token-1",
	}
}

func textUpdate(updateID int, fromID, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: updateID,
			From:      &tgbotapi.User{ID: fromID, FirstName: "Aziz", LastName: "K"},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Date:      1700000000,
		},
	}
}

func TestManagerNormalizesTextUpdate(t *testing.T) {
	m := NewManager(registry.NewAccountRegistry(), placeholderResolver{}, &recordingIngestor{}, 30)
	bot := &tgbotapi.BotAPI{Self: tgbotapi.User{ID: 42}}

	inbound := m.normalize(context.Background(), bot, testAccount(), textUpdate(1001, 7, 555, "salom"))

	assert.Equal(t, "tenant-1", inbound.TenantID)
	assert.Equal(t, "555", inbound.ContactID)
	assert.Equal(t, "Aziz K", inbound.ContactName)
	assert.Equal(t, channels.ChannelTelegram, inbound.Channel)
	assert.Equal(t, channels.TypeText, inbound.MessageType)
	assert.Equal(t, "salom", inbound.Text)
	assert.Equal(t, "telegram:1001", inbound.MessageID)
	assert.False(t, inbound.ReceivedAt.IsZero())
}

func TestManagerResolvesStickers(t *testing.T) {
	m := NewManager(registry.NewAccountRegistry(), placeholderResolver{}, &recordingIngestor{}, 30)
	bot := &tgbotapi.BotAPI{Self: tgbotapi.User{ID: 42}}

	update := textUpdate(1002, 7, 555, "")
	update.Message.Sticker = &tgbotapi.Sticker{Emoji: "🔥"}

	inbound := m.normalize(context.Background(), bot, testAccount(), update)

	assert.Equal(t, channels.TypeSticker, inbound.MessageType)
	assert.Equal(t, "[Customer sent a sticker with emoji: 🔥]", inbound.Text)
}

func TestManagerPlaceholderForUnresolvedPayloads(t *testing.T) {
	ingestor := &recordingIngestor{}
	m := NewManager(registry.NewAccountRegistry(), placeholderResolver{}, ingestor, 30)
	bot := &tgbotapi.BotAPI{Self: tgbotapi.User{ID: 42}}

	contact := textUpdate(2001, 7, 555, "")
	contact.Message.Contact = &tgbotapi.Contact{PhoneNumber: "+998901234567"}
	m.handleUpdate(context.Background(), bot, testAccount(), contact)

	location := textUpdate(2002, 7, 555, "")
	location.Message.Location = &tgbotapi.Location{Latitude: 41.3, Longitude: 69.2}
	m.handleUpdate(context.Background(), bot, testAccount(), location)

	require.Len(t, ingestor.msgs, 2)
	assert.Equal(t, "[Customer sent a contact]", ingestor.msgs[0].Text)
	assert.Equal(t, "[Customer sent a location]", ingestor.msgs[1].Text)
	assert.Equal(t, channels.TypeText, ingestor.msgs[0].MessageType)
}

func TestManagerSkipsBotAndSelfMessages(t *testing.T) {
	ingestor := &recordingIngestor{}
	m := NewManager(registry.NewAccountRegistry(), placeholderResolver{}, ingestor, 30)
	bot := &tgbotapi.BotAPI{Self: tgbotapi.User{ID: 42}}

	self := textUpdate(1, 42, 555, "echo")
	m.handleUpdate(context.Background(), bot, testAccount(), self)

	other := textUpdate(2, 9, 555, "from another bot")
	other.Message.From.IsBot = true
	m.handleUpdate(context.Background(), bot, testAccount(), other)

	empty := textUpdate(3, 7, 555, "")
	m.handleUpdate(context.Background(), bot, testAccount(), empty)

	assert.Empty(t, ingestor.msgs)
}

func TestManagerDispatchesInbound(t *testing.T) {
	ingestor := &recordingIngestor{}
	m := NewManager(registry.NewAccountRegistry(), placeholderResolver{}, ingestor, 30)
	bot := &tgbotapi.BotAPI{Self: tgbotapi.User{ID: 42}}

	m.handleUpdate(context.Background(), bot, testAccount(), textUpdate(5, 7, 555, "narxi qancha?"))

	require.Len(t, ingestor.msgs, 1)
	assert.Equal(t, "narxi qancha?", ingestor.msgs[0].Text)
}

func TestSenderRequiresConnectedAccount(t *testing.T) {
	reg := registry.NewAccountRegistry()
	m := NewManager(reg, placeholderResolver{}, &recordingIngestor{}, 30)
	sender := NewSender(reg, m)

	_, err := sender.Send(context.Background(), "tenant-1", "555", "salom")
	require.Error(t, err)
}

func TestSplitMessage(t *testing.T) {
	assert.Nil(t, splitMessage("", 10))
	assert.Equal(t, []string{"salom"}, splitMessage("salom", 10))

	long := strings.Repeat("a", 9) + "\n" + strings.Repeat("b", 9)
	chunks := splitMessage(long, 12)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 9), chunks[0])
	assert.Equal(t, strings.Repeat("b", 9), chunks[1])

	for _, chunk := range splitMessage(strings.Repeat("x", 10000), maxMessageLength) {
		assert.LessOrEqual(t, len([]rune(chunk)), maxMessageLength)
	}
}

func TestContactNameFallsBackToUsername(t *testing.T) {
	assert.Equal(t, "aziz_k", contactName(&tgbotapi.User{UserName: "aziz_k"}))
	assert.Equal(t, "Aziz", contactName(&tgbotapi.User{FirstName: "Aziz", UserName: "aziz_k"}))
}
