package domain

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrAccountNotFound  = errors.New("channel account not found")
	ErrDuplicateAccount = errors.New("channel account already registered")
)

// AccountStatus is the lifecycle of a channel connection.
type AccountStatus string

const (
	StatusDisconnected AccountStatus = "disconnected"
	StatusOTPSent      AccountStatus = "otp_sent"
	StatusConnected    AccountStatus = "connected"
	StatusError        AccountStatus = "error"
)

// Tenant is one business using the platform. Its persona and master prompt
// drive every AI reply generated on its behalf.
type Tenant struct {
	ID                  string
	Name                string
	AIPersona           string
	MasterPrompt        string
	Timezone            string
	HumanHandoffEnabled bool
	OwnerTelegramChatID int64
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (t Tenant) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&t.Timezone, validation.Length(0, 64)),
	)
}

// ChannelAccount binds a tenant to one messaging channel identity.
// Credential is the plaintext token in memory only; repositories store it
// encrypted.
type ChannelAccount struct {
	ID          string
	TenantID    string
	Channel     string
	ExternalID  string
	DisplayName string
	PageID      string
	Credential  string
	Status      AccountStatus
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a ChannelAccount) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.TenantID, validation.Required),
		validation.Field(&a.Channel, validation.Required, validation.In("telegram", "instagram", "facebook")),
		validation.Field(&a.ExternalID, validation.Required),
		validation.Field(&a.Credential, validation.Required),
	)
}

// FrequentQuestion tracks a question cluster the AI could not answer.
// Once a cluster accumulates enough hits it surfaces for review.
type FrequentQuestion struct {
	ID           string
	TenantID     string
	ClusterTopic string
	SampleText   string
	HitCount     int
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	QuestionTracking      = "tracking"
	QuestionPendingReview = "pending_review"
	QuestionAnswered      = "answered"
)

// ReviewThreshold is the hit count at which a tracked question is promoted
// to pending_review.
const ReviewThreshold = 5
