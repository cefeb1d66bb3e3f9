package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaType_UnmarshalText(t *testing.T) {
	var mt MediaType
	require.NoError(t, mt.UnmarshalText([]byte(" video ")))
	assert.Equal(t, MediaTypeVideo, mt)
	assert.True(t, mt.QueueEligible())

	require.NoError(t, mt.UnmarshalText([]byte("Photo")))
	assert.Equal(t, MediaTypePhoto, mt)
	assert.False(t, mt.QueueEligible())

	assert.Error(t, mt.UnmarshalText([]byte("gif")))
}

func TestCaptionStatus_Terminal(t *testing.T) {
	assert.False(t, CaptionStatusNone.Terminal())
	assert.False(t, CaptionStatusPending.Terminal())
	assert.True(t, CaptionStatusCompleted.Terminal())
	assert.True(t, CaptionStatusFailed.Terminal())
	assert.False(t, CaptionStatus("DONE").Valid())
}

func TestCreatePostRequest_NormalizeAndValidate(t *testing.T) {
	author := "  "
	req := CreatePostRequest{
		AuthorID:  &author,
		MediaType: "video",
		MediaURL:  "  https://cdn.example.com/v.mp4 ",
	}
	req.Normalize()

	require.NoError(t, req.Validate())
	assert.Nil(t, req.AuthorID)
	assert.Equal(t, MediaTypeVideo, req.MediaType)
	assert.Equal(t, "https://cdn.example.com/v.mp4", req.MediaURL)
	assert.Equal(t, DefaultMood, req.Mood)
}

func TestCreatePostRequest_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  CreatePostRequest
	}{
		{"bad media type", CreatePostRequest{MediaType: "GIF", MediaURL: "https://x/v.mp4", Mood: "happy"}},
		{"missing url", CreatePostRequest{MediaType: MediaTypeVideo, Mood: "happy"}},
		{"long url", CreatePostRequest{MediaType: MediaTypeVideo, MediaURL: "https://x/" + strings.Repeat("a", MaxMediaURLLength), Mood: "happy"}},
		{"bad mood", CreatePostRequest{MediaType: MediaTypeVideo, MediaURL: "https://x/v.mp4", Mood: "happy; drop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}

func TestValidateLanguage(t *testing.T) {
	assert.NoError(t, ValidateLanguage(""))
	assert.NoError(t, ValidateLanguage("pt-BR"))
	assert.NoError(t, ValidateLanguage("zh_Hant.TW"))
	assert.Error(t, ValidateLanguage("en;rm"))
}

func TestNewCaptionStatusView(t *testing.T) {
	caption := "A sunny beach"

	completed := NewCaptionStatusView(&Post{CaptionStatus: CaptionStatusCompleted, GeneratedCaption: &caption})
	assert.Equal(t, CaptionStatusCompleted, completed.Status)
	assert.True(t, completed.HasCaption)
	require.NotNil(t, completed.Caption)
	assert.Equal(t, caption, *completed.Caption)
	assert.Nil(t, completed.ErrorMessage)

	failed := NewCaptionStatusView(&Post{CaptionStatus: CaptionStatusFailed})
	assert.False(t, failed.HasCaption)
	assert.Nil(t, failed.Caption)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, CaptionFailedMessage, *failed.ErrorMessage)

	pending := NewCaptionStatusView(&Post{CaptionStatus: CaptionStatusPending})
	assert.False(t, pending.HasCaption)
	assert.Nil(t, pending.ErrorMessage)
}

func TestPost_IsCurrentJob(t *testing.T) {
	job := "j1"
	p := &Post{CurrentJobID: &job}
	assert.True(t, p.IsCurrentJob("j1"))
	assert.False(t, p.IsCurrentJob("j0"))
	assert.False(t, (&Post{}).IsCurrentJob("j1"))
	assert.False(t, (*Post)(nil).IsCurrentJob("j1"))
}
