package handoff

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/notify"
)

// FlagStore is the handoff slice of the conversation store.
type FlagStore interface {
	SetHumanHandoff(ctx context.Context, tenantID, contactID string, active bool) error
	IsHumanHandoff(ctx context.Context, tenantID, contactID string) (bool, error)
}

// ArchiveMarker flags the durable conversation record for the dashboard.
type ArchiveMarker interface {
	SetNeedsHuman(ctx context.Context, tenantID, contactID string, needsHuman bool) error
}

// OwnerAlerter pushes an out-of-band alert to the business owner.
type OwnerAlerter interface {
	AlertOwner(ctx context.Context, tenantID, text string) error
}

// Coordinator escalates conversations from the AI to a human operator.
// Setting the handoff flag is the one step that must succeed; the archive
// mark, the notification event, and the owner alert are each best effort
// and independent of one another.
type Coordinator struct {
	flags     FlagStore
	archive   ArchiveMarker    // optional
	publisher notify.Publisher // optional
	alerter   OwnerAlerter     // optional
}

func NewCoordinator(flags FlagStore, archive ArchiveMarker, publisher notify.Publisher, alerter OwnerAlerter) *Coordinator {
	return &Coordinator{flags: flags, archive: archive, publisher: publisher, alerter: alerter}
}

// Escalate pauses the AI for this contact and notifies the operator side.
// Calling it again while the flag is already set is a no-op, so repeated
// triggers within one conversation do not spam the owner.
func (c *Coordinator) Escalate(ctx context.Context, tenantID, contactID, contactName, reason string) error {
	active, err := c.flags.IsHumanHandoff(ctx, tenantID, contactID)
	if err == nil && active {
		return nil
	}

	if err := c.flags.SetHumanHandoff(ctx, tenantID, contactID, true); err != nil {
		return fmt.Errorf("set handoff flag: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"contact_id": contactID,
		"reason":     reason,
	}).Warn("[HANDOFF] Conversation escalated to human operator")

	if contactName == "" {
		contactName = "Unknown"
	}

	if c.archive != nil {
		if err := c.archive.SetNeedsHuman(ctx, tenantID, contactID, true); err != nil {
			logrus.WithError(err).Error("[HANDOFF] Failed to flag conversation record")
		}
	}

	if c.publisher != nil {
		event := notify.Event{
			TenantID: tenantID,
			Type:     notify.EventHandoffRequired,
			Title:    "🆘 Human Handoff Required",
			Message:  fmt.Sprintf("Contact %s requires assistance. Reason: %s", contactName, reason),
			Severity: "warning",
			Link:     "/conversations",
		}
		if err := c.publisher.Publish(ctx, event); err != nil {
			logrus.WithError(err).Error("[HANDOFF] Failed to publish handoff event")
		}
	}

	if c.alerter != nil {
		text := fmt.Sprintf(
			"🆘 *HUMAN HANDOFF ALERT*\n\n👤 *Customer:* %s\n📝 *Reason:* %s\n\n⚠️ AI has paused for this conversation. Please step in via the dashboard.",
			contactName, reason,
		)
		if err := c.alerter.AlertOwner(ctx, tenantID, text); err != nil {
			logrus.WithError(err).Error("[HANDOFF] Failed to alert owner")
		}
	}

	return nil
}

// Release returns the conversation to the AI.
func (c *Coordinator) Release(ctx context.Context, tenantID, contactID string) error {
	if err := c.flags.SetHumanHandoff(ctx, tenantID, contactID, false); err != nil {
		return fmt.Errorf("clear handoff flag: %w", err)
	}

	if c.archive != nil {
		if err := c.archive.SetNeedsHuman(ctx, tenantID, contactID, false); err != nil {
			logrus.WithError(err).Error("[HANDOFF] Failed to clear conversation record flag")
		}
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"contact_id": contactID,
	}).Info("[HANDOFF] Conversation released back to AI")
	return nil
}
