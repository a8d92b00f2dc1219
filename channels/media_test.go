package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMediaTags_TextOnly(t *testing.T) {
	clean, imgs, vids := ParseMediaTags("Narxi 250 ming so'm, yetkazib beramiz!")
	assert.Equal(t, "Narxi 250 ming so'm, yetkazib beramiz!", clean)
	assert.Empty(t, imgs)
	assert.Empty(t, vids)
}

func TestParseMediaTags_MixedPayload(t *testing.T) {
	reply := "Mana bizning katalog:\n[IMAGE: https://cdn.example.com/cat.jpg]\n[VIDEO: https://cdn.example.com/demo.mp4]\nQaysi model yoqdi?"
	clean, imgs, vids := ParseMediaTags(reply)

	require.Equal(t, []string{"https://cdn.example.com/cat.jpg"}, imgs)
	require.Equal(t, []string{"https://cdn.example.com/demo.mp4"}, vids)
	assert.Equal(t, "Mana bizning katalog:\nQaysi model yoqdi?", clean)
}

func TestParseMediaTags_MarkerOnlyLinesRemoved(t *testing.T) {
	clean, imgs, vids := ParseMediaTags("a:\n[IMAGE: u]\n[VIDEO: v]\nb")
	assert.Equal(t, "a:\nb", clean)
	assert.Equal(t, []string{"u"}, imgs)
	assert.Equal(t, []string{"v"}, vids)

	// A blank line the author wrote survives stripping.
	clean, _, _ = ParseMediaTags("birinchi qator\n\n[IMAGE: u]\nikkinchi qator")
	assert.Equal(t, "birinchi qator\n\nikkinchi qator", clean)
}

func TestParseMediaTags_CaseInsensitiveAndSpacing(t *testing.T) {
	clean, imgs, _ := ParseMediaTags("look [image:https://x.io/a.png] and [IMAGE:  https://x.io/b.png ]")
	assert.Equal(t, []string{"https://x.io/a.png", "https://x.io/b.png"}, imgs)
	assert.Equal(t, "look  and", clean)
}

func TestParseMediaTags_MultipleImages(t *testing.T) {
	_, imgs, vids := ParseMediaTags("[IMAGE: u1][IMAGE: u2][IMAGE: u3]")
	assert.Len(t, imgs, 3)
	assert.Empty(t, vids)
}

func TestSendResult_Partial(t *testing.T) {
	r := SendResult{TextSent: true, ImagesFailed: 1}
	assert.True(t, r.Partial())
	assert.True(t, r.Delivered())

	r = SendResult{TextSent: false, ImagesFailed: 2}
	assert.False(t, r.Partial())
	assert.False(t, r.Delivered())

	r = SendResult{TextSent: true, ImagesSent: 2}
	assert.False(t, r.Partial())
}
