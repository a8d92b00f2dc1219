package channels

import (
	"context"
	"time"
)

// Channel identifies a messaging platform a tenant can connect.
type Channel string

const (
	ChannelTelegram  Channel = "telegram"
	ChannelInstagram Channel = "instagram"
	ChannelFacebook  Channel = "facebook"
)

// MessageType classifies a normalized inbound message.
type MessageType string

const (
	TypeText         MessageType = "text"
	TypeVoice        MessageType = "voice"
	TypeImage        MessageType = "image"
	TypeVideo        MessageType = "video"
	TypeDocument     MessageType = "document"
	TypeSticker      MessageType = "sticker"
	TypeComment      MessageType = "comment"
	TypeCommentReply MessageType = "comment_reply"
)

// Media is the raw payload attached to an inbound message, before it is
// resolved to descriptive text.
type Media struct {
	Type     MessageType
	URL      string
	Data     []byte
	MimeType string
	FileName string
	Caption  string
	Emoji    string // stickers only
}

// InboundMessage is the channel-agnostic event every downstream component
// operates on. Adapters are the only place that sees channel wire formats.
//
// Text is always populated: media payloads are resolved to descriptive text
// by the adapter before the message is emitted.
type InboundMessage struct {
	TenantID    string
	ContactID   string
	ContactName string
	Channel     Channel
	MessageType MessageType
	Text        string
	// MessageID is the provider's stable message id when the channel supplies
	// one (Meta "mid", Telegram update id); empty otherwise. Used for dedup.
	MessageID  string
	ReceivedAt time.Time
}

// SendResult reports the outcome of one outbound reply, which may fan out
// into several channel-native calls (text + attachments).
type SendResult struct {
	TextSent     bool
	ImagesSent   int
	ImagesFailed int
	VideosSent   int
	VideosFailed int
}

// Partial reports whether some, but not all, parts of the reply were delivered.
func (r SendResult) Partial() bool {
	failed := r.ImagesFailed + r.VideosFailed
	delivered := r.ImagesSent + r.VideosSent
	if r.TextSent {
		delivered++
	}
	return failed > 0 && delivered > 0
}

// Delivered reports whether at least one part of the reply reached the contact.
func (r SendResult) Delivered() bool {
	return r.TextSent || r.ImagesSent > 0 || r.VideosSent > 0
}

// Sender delivers a reply to a contact over one channel. The reply text may
// embed [IMAGE: url] / [VIDEO: url] markers which the adapter extracts and
// dispatches as separate attachment calls.
type Sender interface {
	Send(ctx context.Context, tenantID, contactID, reply string) (SendResult, error)
}

// MediaResolver turns a raw media payload into text the agent can reason
// about. Implementations must not fail: on any error they degrade to a
// generic placeholder so the pipeline always has some text.
type MediaResolver interface {
	Resolve(ctx context.Context, msgType MessageType, media *Media) string
}
