package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	agentdomain "github.com/aloqachat/aloqa/agent/domain"
	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/notify"
	"github.com/aloqachat/aloqa/registry"
)

// Ingestor accepts normalized messages into the processing pipeline.
type Ingestor interface {
	HandleInbound(ctx context.Context, msg channels.InboundMessage) error
}

// Responder generates a reply decision outside the normal pipeline. Used
// for public comment replies, which are delivered to the comment thread
// rather than a DM.
type Responder interface {
	Respond(ctx context.Context, msg channels.InboundMessage) (agentdomain.Decision, error)
}

// Adapter normalizes Instagram or Messenger webhook payloads into pipeline
// messages. One instance serves one channel; both share the wire format.
type Adapter struct {
	channel   channels.Channel
	prefix    string
	registry  *registry.AccountRegistry
	client    *Client
	resolver  channels.MediaResolver
	ingestor  Ingestor
	responder Responder        // optional; disables comment replies when nil
	publisher notify.Publisher // optional
}

func NewInstagramAdapter(reg *registry.AccountRegistry, client *Client, resolver channels.MediaResolver, ingestor Ingestor, responder Responder, publisher notify.Publisher) *Adapter {
	return &Adapter{
		channel:   channels.ChannelInstagram,
		prefix:    "ig_",
		registry:  reg,
		client:    client,
		resolver:  resolver,
		ingestor:  ingestor,
		responder: responder,
		publisher: publisher,
	}
}

func NewFacebookAdapter(reg *registry.AccountRegistry, client *Client, resolver channels.MediaResolver, ingestor Ingestor, responder Responder, publisher notify.Publisher) *Adapter {
	return &Adapter{
		channel:   channels.ChannelFacebook,
		prefix:    "fb_",
		registry:  reg,
		client:    client,
		resolver:  resolver,
		ingestor:  ingestor,
		responder: responder,
		publisher: publisher,
	}
}

func (a *Adapter) Channel() channels.Channel {
	return a.channel
}

// ProcessPayload walks every entry of a verified webhook payload. Errors
// in one event never stop the others; Meta has already been answered 200
// by the time this runs.
func (a *Adapter) ProcessPayload(ctx context.Context, payload *WebhookPayload) {
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			a.processMessaging(ctx, event)
		}
		for _, change := range entry.Changes {
			if change.Field == "comments" || change.Field == "feed" {
				a.processComment(ctx, entry.ID, change.Value)
			}
		}
	}
}

func (a *Adapter) processMessaging(ctx context.Context, event MessagingEvent) {
	if event.Message == nil || event.Sender.ID == "" {
		return
	}
	// Skip our own outbound messages echoed back.
	if event.Message.IsEcho || event.Sender.ID == event.Recipient.ID {
		return
	}

	account, ok := a.registry.Lookup(a.channel, event.Recipient.ID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"channel":   a.channel,
			"recipient": event.Recipient.ID,
		}).Warn("[META] Webhook for unregistered account")
		return
	}

	a.notifyNewMessage(ctx, account.TenantID, event.Sender.ID)

	contactID := a.prefix + event.Sender.ID
	messageID := ""
	if event.Message.MID != "" {
		messageID = string(a.channel) + ":" + event.Message.MID
	}

	if event.Message.Text != "" {
		a.ingest(ctx, channels.InboundMessage{
			TenantID:    account.TenantID,
			ContactID:   contactID,
			Channel:     a.channel,
			MessageType: channels.TypeText,
			Text:        event.Message.Text,
			MessageID:   messageID,
		})
	}

	for i, att := range event.Message.Attachments {
		attMsgID := messageID
		if attMsgID != "" && (event.Message.Text != "" || i > 0) {
			attMsgID = fmt.Sprintf("%s#%d", messageID, i)
		}
		a.processAttachment(ctx, account, contactID, attMsgID, att)
	}
}

func (a *Adapter) processAttachment(ctx context.Context, account registry.AccountInfo, contactID, messageID string, att Attachment) {
	msgType := attachmentType(att.Type)

	var text string
	if att.Payload.URL == "" {
		text = fmt.Sprintf("[Customer sent a %s]", att.Type)
		msgType = channels.TypeText
	} else {
		media := &channels.Media{Type: msgType, URL: att.Payload.URL}
		if data, contentType, err := a.client.Download(ctx, att.Payload.URL); err != nil {
			logrus.WithError(err).Warn("[META] Attachment download failed")
		} else {
			media.Data = data
			media.MimeType = contentType
		}
		text = a.resolver.Resolve(ctx, msgType, media)
	}

	a.ingest(ctx, channels.InboundMessage{
		TenantID:    account.TenantID,
		ContactID:   contactID,
		Channel:     a.channel,
		MessageType: msgType,
		Text:        text,
		MessageID:   messageID,
	})
}

func attachmentType(metaType string) channels.MessageType {
	switch metaType {
	case "image":
		return channels.TypeImage
	case "video":
		return channels.TypeVideo
	case "audio":
		return channels.TypeVoice
	case "file":
		return channels.TypeDocument
	default:
		return channels.TypeText
	}
}

// processComment converts a public product inquiry into a public reply
// plus a private DM conversation.
func (a *Adapter) processComment(ctx context.Context, accountID string, value CommentValue) {
	// Facebook feed events also cover likes, edits, and removals.
	if value.Item != "" && (value.Item != "comment" || value.Verb != "add") {
		return
	}

	commentID := value.commentID()
	text := value.commentText()
	senderID := value.From.ID
	if commentID == "" || text == "" || senderID == "" {
		return
	}

	account, ok := a.registry.Lookup(a.channel, accountID)
	if !ok {
		logrus.WithField("account", accountID).Warn("[META] Comment for unregistered account")
		return
	}
	// Skip our own comments and replies.
	if senderID == accountID || senderID == account.PageID {
		return
	}

	if !IsProductInquiry(text) {
		return
	}

	author := value.authorName()
	logrus.WithFields(logrus.Fields{
		"channel":   a.channel,
		"tenant_id": account.TenantID,
		"author":    author,
	}).Info("[META] Product inquiry comment detected")

	a.replyPublicly(ctx, account, commentID, author, text)

	// DM follow-up goes through the normal pipeline so it is ordered,
	// deduplicated, and archived like any conversation turn.
	a.ingest(ctx, channels.InboundMessage{
		TenantID:    account.TenantID,
		ContactID:   a.prefix + senderID,
		ContactName: author,
		Channel:     a.channel,
		MessageType: channels.TypeCommentReply,
		Text:        fmt.Sprintf("[PRIVATE DM follow-up] @%s commented on our post: %q. Start a sales conversation.", author, text),
		MessageID:   string(a.channel) + ":comment-dm:" + commentID,
	})
}

func (a *Adapter) replyPublicly(ctx context.Context, account registry.AccountInfo, commentID, author, text string) {
	if a.responder == nil {
		return
	}

	decision, err := a.responder.Respond(ctx, channels.InboundMessage{
		TenantID:    account.TenantID,
		ContactID:   a.prefix + "comment_" + commentID,
		ContactName: author,
		Channel:     a.channel,
		MessageType: channels.TypeComment,
		Text:        fmt.Sprintf("[PUBLIC COMMENT on our post] @%s wrote: %q. Keep your reply short (1-2 sentences) and invite them to DM for details.", author, text),
	})
	if err != nil {
		logrus.WithError(err).Error("[META] Comment reply generation failed")
		return
	}

	reply := strings.TrimSpace(decision.ReplyText)
	if reply == "" {
		return
	}
	if err := a.client.ReplyToComment(ctx, account.AccessToken, commentID, reply); err != nil {
		logrus.WithError(err).Error("[META] Comment reply delivery failed")
	}
}

func (a *Adapter) ingest(ctx context.Context, msg channels.InboundMessage) {
	if err := a.ingestor.HandleInbound(ctx, msg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"channel":    msg.Channel,
			"tenant_id":  msg.TenantID,
			"contact_id": msg.ContactID,
		}).Error("[META] Inbound dispatch failed")
	}
}

func channelLabel(ch channels.Channel) string {
	switch ch {
	case channels.ChannelInstagram:
		return "Instagram"
	case channels.ChannelFacebook:
		return "Facebook"
	default:
		return string(ch)
	}
}

func (a *Adapter) notifyNewMessage(ctx context.Context, tenantID, senderID string) {
	if a.publisher == nil {
		return
	}
	event := notify.Event{
		TenantID: tenantID,
		Type:     "message.received",
		Title:    fmt.Sprintf("New %s Message", channelLabel(a.channel)),
		Message:  "From " + senderID,
		Severity: "info",
		Link:     "/conversations",
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).Debug("[META] Message notification failed")
	}
}
