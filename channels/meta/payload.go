package meta

// Webhook payload shapes shared by Instagram and Messenger events.

type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
	Changes   []Change         `json:"changes"`
}

type MessagingEvent struct {
	Sender    Party    `json:"sender"`
	Recipient Party    `json:"recipient"`
	Message   *Message `json:"message"`
}

type Party struct {
	ID string `json:"id"`
}

type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

type AttachmentPayload struct {
	URL string `json:"url"`
}

type Change struct {
	Field string       `json:"field"`
	Value CommentValue `json:"value"`
}

// CommentValue covers both the Instagram comments shape and the Facebook
// feed shape; unused fields are simply absent.
type CommentValue struct {
	// Instagram
	ID    string `json:"id"`
	Text  string `json:"text"`
	Media struct {
		ID string `json:"id"`
	} `json:"media"`

	// Facebook feed
	Item      string `json:"item"`
	Verb      string `json:"verb"`
	CommentID string `json:"comment_id"`
	Message   string `json:"message"`

	From CommentAuthor `json:"from"`
}

type CommentAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"` // Instagram
	Name     string `json:"name"`     // Facebook
}

// commentID returns the id of the comment regardless of shape.
func (v CommentValue) commentID() string {
	if v.CommentID != "" {
		return v.CommentID
	}
	return v.ID
}

// commentText returns the comment body regardless of shape.
func (v CommentValue) commentText() string {
	if v.Text != "" {
		return v.Text
	}
	return v.Message
}

// authorName returns the display name of the commenter.
func (v CommentValue) authorName() string {
	if v.From.Username != "" {
		return v.From.Username
	}
	if v.From.Name != "" {
		return v.From.Name
	}
	return "Unknown"
}
