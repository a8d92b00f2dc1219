package providers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/aloqachat/aloqa/channels"
)

const (
	docTextLimit       = 3000
	docTruncatedMarker = "\n\n[Document truncated for processing...]"
)

// MediaInterpreter turns inbound media into text the agent can reason
// about. Images and video go through Gemini vision, voice through Whisper.
// Resolution never fails: every error degrades to a typed placeholder so
// the conversation continues.
type MediaInterpreter struct {
	geminiKey          string
	visionModel        string
	openaiClient       openai.Client
	transcriptionModel string
	timeout            time.Duration
}

func NewMediaInterpreter(geminiKey, visionModel, openaiKey, transcriptionModel string, timeout time.Duration) *MediaInterpreter {
	if visionModel == "" {
		visionModel = "gemini-2.0-flash"
	}
	if transcriptionModel == "" {
		transcriptionModel = "whisper-1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MediaInterpreter{
		geminiKey:          geminiKey,
		visionModel:        visionModel,
		openaiClient:       openai.NewClient(option.WithAPIKey(openaiKey)),
		transcriptionModel: transcriptionModel,
		timeout:            timeout,
	}
}

func (m *MediaInterpreter) Resolve(ctx context.Context, msgType channels.MessageType, media *channels.Media) string {
	if media == nil {
		media = &channels.Media{}
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	switch msgType {
	case channels.TypeImage:
		return m.resolveImage(ctx, media)
	case channels.TypeVideo:
		return m.resolveVideo(ctx, media)
	case channels.TypeVoice:
		return m.resolveVoice(ctx, media)
	case channels.TypeDocument:
		return m.resolveDocument(media)
	case channels.TypeSticker:
		emoji := media.Emoji
		if emoji == "" {
			emoji = "😊"
		}
		return fmt.Sprintf("[Customer sent a sticker with emoji: %s]", emoji)
	default:
		return fmt.Sprintf("[Customer sent a %s]", msgType)
	}
}

func (m *MediaInterpreter) resolveImage(ctx context.Context, media *channels.Media) string {
	desc, err := m.describe(ctx, media, "Describe this image for a sales assistant. If it looks like a payment receipt, state the amount, date, and whether it shows a success status.")
	if err != nil {
		logrus.WithError(err).Warn("[MEDIA] Image analysis failed")
		return withCaption(media.Caption, "[Customer sent an image]")
	}
	return withCaption(media.Caption, fmt.Sprintf("[Image shows: %s]", desc))
}

func (m *MediaInterpreter) resolveVideo(ctx context.Context, media *channels.Media) string {
	desc, err := m.describe(ctx, media, "Describe the content of this video, including any speech.")
	if err != nil {
		logrus.WithError(err).Warn("[MEDIA] Video analysis failed")
		return withCaption(media.Caption, "[Customer sent a video]")
	}
	return withCaption(media.Caption, fmt.Sprintf("[Video content: %s]", desc))
}

func (m *MediaInterpreter) describe(ctx context.Context, media *channels.Media, prompt string) (string, error) {
	if len(media.Data) == 0 {
		return "", fmt.Errorf("no media data")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  m.geminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: media.MimeType, Data: media.Data}},
			{Text: prompt},
		},
	}}

	result, err := client.Models.GenerateContent(ctx, m.visionModel, contents, nil)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("no response from vision model")
	}

	var desc string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			desc += part.Text
		}
	}
	if strings.TrimSpace(desc) == "" {
		return "", fmt.Errorf("empty vision description")
	}
	return strings.TrimSpace(desc), nil
}

func (m *MediaInterpreter) resolveVoice(ctx context.Context, media *channels.Media) string {
	if len(media.Data) == 0 {
		return "[Customer sent a voice message]"
	}

	filename := media.FileName
	if filename == "" {
		filename = "voice.ogg"
	}

	resp, err := m.openaiClient.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(m.transcriptionModel),
		File:  openai.File(bytes.NewReader(media.Data), filename, media.MimeType),
	})
	if err != nil {
		logrus.WithError(err).Warn("[MEDIA] Voice transcription failed")
		return "[Customer sent a voice message]"
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "[Customer sent a voice message]"
	}
	return resp.Text
}

func (m *MediaInterpreter) resolveDocument(media *channels.Media) string {
	filename := media.FileName
	if filename == "" {
		filename = "document"
	}

	text := extractDocumentText(media)
	if text == "" {
		text = fmt.Sprintf("[Received file: %s — unable to extract text from this format]", filename)
	}

	return withCaption(media.Caption, fmt.Sprintf("[Document: %s]\n%s", filename, text))
}

func extractDocumentText(media *channels.Media) string {
	if len(media.Data) == 0 || !utf8.Valid(media.Data) {
		return ""
	}
	text := strings.TrimSpace(string(media.Data))
	if text == "" {
		return ""
	}
	if len(text) > docTextLimit {
		cut := docTextLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + docTruncatedMarker
	}
	return text
}

func withCaption(caption, body string) string {
	if caption == "" {
		return body
	}
	return caption + "\n\n" + body
}
