package spl402

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleConstants(t *testing.T) {
	assert.Equal(t, Role("user"), RoleUser)
	assert.Equal(t, Role("assistant"), RoleAssistant)
	assert.Equal(t, Role("system"), RoleSystem)
}

func TestContentPartTypeConstants(t *testing.T) {
	assert.Equal(t, ContentPartType("text"), ContentPartTypeText)
	assert.Equal(t, ContentPartType("image"), ContentPartTypeImage)
}

func TestNewTextPart(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "creates text part", text: "Hello, world!"},
		{name: "handles empty string", text: ""},
		{name: "handles multiline text", text: "line1\nline2\nline3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := NewTextPart(tt.text)
			assert.Equal(t, ContentPart{Type: ContentPartTypeText, Text: tt.text}, part)
			assert.Empty(t, part.ImageURL)
			assert.Empty(t, part.Base64)
			assert.Empty(t, part.MimeType)
		})
	}
}

func TestNewImageParts(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		part := NewImageURLPart("https://example.com/cat.png")
		assert.Equal(t, ContentPartTypeImage, part.Type)
		assert.Equal(t, "https://example.com/cat.png", part.ImageURL)
		assert.Empty(t, part.Base64)
	})

	t.Run("base64", func(t *testing.T) {
		part := NewImageBase64Part("aGVsbG8=", "image/png")
		assert.Equal(t, ContentPartTypeImage, part.Type)
		assert.Equal(t, "aGVsbG8=", part.Base64)
		assert.Equal(t, "image/png", part.MimeType)
		assert.Empty(t, part.ImageURL)
	})
}

func TestMessageHasParts(t *testing.T) {
	assert.False(t, Message{Role: RoleUser, Content: "hi"}.HasParts())
	assert.False(t, Message{Role: RoleUser, Parts: []ContentPart{}}.HasParts())
	assert.True(t, Message{Role: RoleUser, Parts: []ContentPart{NewTextPart("hi")}}.HasParts())
}

func TestCloneMessages(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, CloneMessages(nil))
	})

	t.Run("parts are not shared", func(t *testing.T) {
		orig := []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Parts: []ContentPart{NewTextPart("what is it?"), NewImageURLPart("https://x/y.png")}},
		}

		cp := CloneMessages(orig)
		assert.Equal(t, orig, cp)

		cp[0].Content = "changed"
		cp[1].Parts[0].Text = "changed"
		assert.Equal(t, "be brief", orig[0].Content)
		assert.Equal(t, "what is it?", orig[1].Parts[0].Text)
	})
}

func TestNewUsage(t *testing.T) {
	assert.Equal(t, Usage{TotalTokens: 7, PromptTokens: 3, CompletionTokens: 4}, NewUsage(0, 3, 4))
	assert.Equal(t, Usage{TotalTokens: 10, PromptTokens: 3, CompletionTokens: 4}, NewUsage(10, 3, 4))
	assert.Equal(t, Usage{}, NewUsage(0, 0, 0))
}
