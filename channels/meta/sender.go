package meta

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/registry"
)

// Sender delivers agent replies over the Graph API. Media markers in the
// reply text become separate attachment sends; a reply counts as delivered
// when at least one part goes through.
type Sender struct {
	channel  channels.Channel
	prefix   string
	registry *registry.AccountRegistry
	client   *Client
}

func NewInstagramSender(reg *registry.AccountRegistry, client *Client) *Sender {
	return &Sender{channel: channels.ChannelInstagram, prefix: "ig_", registry: reg, client: client}
}

func NewFacebookSender(reg *registry.AccountRegistry, client *Client) *Sender {
	return &Sender{channel: channels.ChannelFacebook, prefix: "fb_", registry: reg, client: client}
}

func (s *Sender) Send(ctx context.Context, tenantID, contactID, reply string) (channels.SendResult, error) {
	var result channels.SendResult

	account, ok := s.accountFor(tenantID)
	if !ok {
		return result, errors.New("no connected " + string(s.channel) + " account for tenant")
	}

	recipientID := strings.TrimPrefix(contactID, s.prefix)
	text, imageURLs, videoURLs := channels.ParseMediaTags(reply)

	var lastErr error
	if text != "" {
		if err := s.client.SendText(ctx, account.AccessToken, recipientID, text); err != nil {
			logrus.WithError(err).WithField("channel", s.channel).Error("[META] Text send failed")
			lastErr = err
		} else {
			result.TextSent = true
		}
	}
	for _, url := range imageURLs {
		if err := s.client.SendAttachment(ctx, account.AccessToken, recipientID, "image", url); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("[META] Image send failed")
			result.ImagesFailed++
			lastErr = err
		} else {
			result.ImagesSent++
		}
	}
	for _, url := range videoURLs {
		if err := s.client.SendAttachment(ctx, account.AccessToken, recipientID, "video", url); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("[META] Video send failed")
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

func (s *Sender) accountFor(tenantID string) (registry.AccountInfo, bool) {
	for _, account := range s.registry.ByTenant(tenantID) {
		if account.Channel == s.channel {
			return account, true
		}
	}
	return registry.AccountInfo{}, false
}
