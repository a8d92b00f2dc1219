// Package pipeline wires inbound messages from the channel adapters to the
// agent and back out. Every message flows through the worker pool with
// contact affinity, so turns from the same customer are processed strictly
// in order while different customers proceed in parallel.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	agentdomain "github.com/aloqachat/aloqa/agent/domain"
	"github.com/aloqachat/aloqa/automation"
	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/conversation"
	"github.com/aloqachat/aloqa/notify"
	"github.com/aloqachat/aloqa/pkg/msgworker"
)

const leadQualifiedScore = 8

var ErrQueueFull = errors.New("message queue full")

// Responder produces the agent's decision for one inbound message.
type Responder interface {
	Respond(ctx context.Context, msg channels.InboundMessage) (agentdomain.Decision, error)
}

// Pipeline is the per-message processing chain: dedup, handoff gate,
// automation flows, agent response, delivery, archive.
type Pipeline struct {
	pool      *msgworker.Pool
	store     conversation.Store
	responder Responder
	senders   map[channels.Channel]channels.Sender

	archive    conversation.Archive // optional
	automation *automation.Engine   // optional
	publisher  notify.Publisher     // optional

	jobTimeout time.Duration
}

type Option func(*Pipeline)

func WithArchive(archive conversation.Archive) Option {
	return func(p *Pipeline) { p.archive = archive }
}

func WithAutomation(engine *automation.Engine) Option {
	return func(p *Pipeline) { p.automation = engine }
}

func WithPublisher(publisher notify.Publisher) Option {
	return func(p *Pipeline) { p.publisher = publisher }
}

func WithJobTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.jobTimeout = d }
}

func New(pool *msgworker.Pool, store conversation.Store, responder Responder, senders map[channels.Channel]channels.Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		pool:       pool,
		store:      store,
		responder:  responder,
		senders:    senders,
		jobTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleInbound queues one message for processing. It returns immediately;
// adapters must not block on AI latency. ErrQueueFull signals backpressure.
func (p *Pipeline) HandleInbound(_ context.Context, msg channels.InboundMessage) error {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	ok := p.pool.TryDispatch(msgworker.Job{
		TenantID:  msg.TenantID,
		ContactID: msg.ContactID,
		Handler: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
			defer cancel()
			return p.process(ctx, msg)
		},
	})
	if !ok {
		logrus.WithFields(logrus.Fields{
			"tenant_id":  msg.TenantID,
			"contact_id": msg.ContactID,
		}).Error("[PIPELINE] Queue full, message dropped")
		return ErrQueueFull
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, msg channels.InboundMessage) error {
	log := logrus.WithFields(logrus.Fields{
		"tenant_id":  msg.TenantID,
		"contact_id": msg.ContactID,
		"channel":    msg.Channel,
	})

	// Webhooks are delivered at-least-once; a dedup read failure degrades
	// to processing the message rather than dropping it.
	if msg.MessageID != "" {
		first, err := p.store.MarkSeen(ctx, msg.MessageID)
		if err != nil {
			log.WithError(err).Warn("[PIPELINE] Dedup check failed, processing anyway")
		} else if !first {
			log.WithField("message_id", msg.MessageID).Debug("[PIPELINE] Duplicate delivery skipped")
			return nil
		}
	}

	// Handoff gate. An unknown flag means an operator may own this
	// conversation, so the safe outcome is silence.
	active, err := p.store.IsHumanHandoff(ctx, msg.TenantID, msg.ContactID)
	if err != nil {
		log.WithError(err).Error("[PIPELINE] Handoff flag unreadable, staying silent")
		p.archiveTurn(ctx, msg, conversation.RoleUser, msg.Text, conversation.TurnUpdate{ContactName: msg.ContactName})
		return nil
	}
	if active {
		// Keep the operator's transcript complete, but do not answer.
		if err := p.store.AppendMessage(ctx, msg.TenantID, msg.ContactID, conversation.RoleUser, string(msg.MessageType), msg.Text); err != nil {
			log.WithError(err).Warn("[PIPELINE] Context append failed during handoff")
		}
		p.archiveTurn(ctx, msg, conversation.RoleUser, msg.Text, conversation.TurnUpdate{ContactName: msg.ContactName})
		return nil
	}

	// Keyword automations short-circuit the agent.
	if p.automation != nil && msg.MessageType == channels.TypeText {
		matched, err := p.automation.HandleMessage(ctx, msg.TenantID, msg.Text, p.sendFunc(msg))
		if err != nil {
			log.WithError(err).Warn("[PIPELINE] Automation lookup failed")
		} else if matched {
			p.archiveTurn(ctx, msg, conversation.RoleUser, msg.Text, conversation.TurnUpdate{ContactName: msg.ContactName})
			return nil
		}
	}

	decision, err := p.responder.Respond(ctx, msg)
	if err != nil {
		log.WithError(err).Error("[PIPELINE] Agent response failed")
		return err
	}

	update := conversation.TurnUpdate{
		ContactName: msg.ContactName,
		Intent:      decision.Intent,
		Sentiment:   decision.Sentiment,
		LeadScore:   decision.LeadScore,
	}
	p.archiveTurn(ctx, msg, conversation.RoleUser, msg.Text, update)

	if decision.ReplyText != "" && !decision.HumanHandoff {
		p.deliver(ctx, msg, decision.ReplyText)
		p.archiveTurn(ctx, msg, conversation.RoleAssistant, decision.ReplyText, conversation.TurnUpdate{})
	}

	p.publishSignals(ctx, msg, decision)
	return nil
}

func (p *Pipeline) deliver(ctx context.Context, msg channels.InboundMessage, reply string) {
	sender, ok := p.senders[msg.Channel]
	if !ok {
		logrus.WithField("channel", msg.Channel).Error("[PIPELINE] No sender for channel")
		return
	}
	result, err := sender.Send(ctx, msg.TenantID, msg.ContactID, reply)
	switch {
	case err != nil:
		logrus.WithError(err).WithFields(logrus.Fields{
			"tenant_id":  msg.TenantID,
			"contact_id": msg.ContactID,
		}).Error("[PIPELINE] Reply delivery failed")
	case result.Partial():
		logrus.WithFields(logrus.Fields{
			"contact_id":    msg.ContactID,
			"images_failed": result.ImagesFailed,
			"videos_failed": result.VideosFailed,
		}).Warn("[PIPELINE] Reply partially delivered")
	}
}

func (p *Pipeline) sendFunc(msg channels.InboundMessage) automation.SendFunc {
	return func(ctx context.Context, text string) error {
		sender, ok := p.senders[msg.Channel]
		if !ok {
			return errors.New("no sender for channel " + string(msg.Channel))
		}
		_, err := sender.Send(ctx, msg.TenantID, msg.ContactID, text)
		return err
	}
}

func (p *Pipeline) archiveTurn(ctx context.Context, msg channels.InboundMessage, role, content string, update conversation.TurnUpdate) {
	if p.archive == nil || content == "" {
		return
	}
	err := p.archive.RecordTurn(ctx, msg.TenantID, msg.ContactID, string(msg.Channel), role, string(msg.MessageType), content, update)
	if err != nil {
		logrus.WithError(err).Warn("[PIPELINE] Archive write failed")
	}
}

func (p *Pipeline) publishSignals(ctx context.Context, msg channels.InboundMessage, decision agentdomain.Decision) {
	if p.publisher == nil {
		return
	}
	if decision.SaleDetected {
		p.publish(ctx, notify.Event{
			TenantID: msg.TenantID,
			Type:     notify.EventSaleDetected,
			Title:    "💰 Sale Detected",
			Message:  "Contact " + msg.ContactID + " appears ready to buy",
			Severity: "info",
			Link:     "/conversations",
		})
	}
	if decision.LeadScore >= leadQualifiedScore {
		p.publish(ctx, notify.Event{
			TenantID: msg.TenantID,
			Type:     notify.EventLeadQualified,
			Title:    "⭐ Qualified Lead",
			Message:  "Contact " + msg.ContactID + " scored as a hot lead",
			Severity: "info",
			Link:     "/conversations",
		})
	}
}

func (p *Pipeline) publish(ctx context.Context, event notify.Event) {
	if err := p.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).Debug("[PIPELINE] Event publish failed")
	}
}
