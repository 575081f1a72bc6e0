// Package prompt builds the outbound message list for each capability.
//
// Every function is pure: identical inputs always produce identical message
// lists and no template state is shared between calls.
package prompt

import (
	"fmt"
	"strings"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// Default output bounds applied when the caller supplies none.
// Chat leaves the bound to the provider.
const (
	CodeMaxTokens     = 4000
	AnalyzeMaxTokens  = 2000
	GenerateMaxTokens = 3000
	VisionMaxTokens   = 2000
)

// System personas.
const (
	CodePersona     = "You are an expert programmer. Generate clean, well-documented code following best practices. Include comments explaining the logic."
	AnalystPersona  = "You are an expert text analyst. Provide clear, structured, and insightful analysis."
	CreativePersona = "You are a creative writer. Generate engaging, well-structured, and original content."
)

// Analysis tasks with a dedicated instruction template.
const (
	TaskSummarize = "summarize"
	TaskAnalyze   = "analyze"
	TaskSentiment = "sentiment"
	TaskKeywords  = "keywords"
)

// genericAnalysis is used for unknown or empty task names.
const genericAnalysis = "Analyze this text:"

var analysisTemplates = map[string]string{
	TaskSummarize: "Provide a concise summary of the following text:",
	TaskAnalyze:   "Provide a detailed analysis of the following text, including main themes, tone, and key points:",
	TaskSentiment: "Analyze the sentiment of the following text. Classify it as positive, negative, or neutral and explain why:",
	TaskKeywords:  "Extract the most important keywords and key phrases from the following text:",
}

// DefaultImageMimeType is assumed for raw base64 image data.
const DefaultImageMimeType = "image/jpeg"

// Chat returns the caller's conversation unchanged.
func Chat(messages []ai.Message) []ai.Message {
	return ai.CloneMessages(messages)
}

// Code builds a code generation conversation.
func Code(prompt, language string) []ai.Message {
	user := "Generate code: " + prompt
	if language != "" {
		user = fmt.Sprintf("Generate %s code: %s", language, prompt)
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: CodePersona},
		{Role: ai.RoleUser, Content: user},
	}
}

// AnalysisTemplate returns the instruction for a task name.
func AnalysisTemplate(task string) string {
	if tmpl, ok := analysisTemplates[task]; ok {
		return tmpl
	}
	return genericAnalysis
}

// Analyze builds a text analysis conversation.
func Analyze(text, task string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: AnalystPersona},
		{Role: ai.RoleUser, Content: AnalysisTemplate(task) + "\n\n" + text},
	}
}

// Generate builds a content generation conversation.
func Generate(prompt, contentType, tone string) []ai.Message {
	var b strings.Builder
	if contentType != "" {
		fmt.Fprintf(&b, "Generate %s: %s", contentType, prompt)
	} else {
		b.WriteString(prompt)
	}
	if tone != "" {
		fmt.Fprintf(&b, "\nTone: %s", tone)
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: CreativePersona},
		{Role: ai.RoleUser, Content: b.String()},
	}
}

// Vision builds a single multimodal user message.
// When both an image URL and inline data are supplied the URL wins.
// Inline data may be raw base64 or a complete data URI.
func Vision(prompt, imageURL, imageBase64 string) []ai.Message {
	var image ai.ContentPart
	switch {
	case imageURL != "":
		image = ai.NewImageURLPart(imageURL)
	case strings.HasPrefix(imageBase64, "data:"):
		image = ai.NewImageURLPart(imageBase64)
	default:
		image = ai.NewImageBase64Part(imageBase64, DefaultImageMimeType)
	}
	return []ai.Message{
		{
			Role:  ai.RoleUser,
			Parts: []ai.ContentPart{ai.NewTextPart(prompt), image},
		},
	}
}

// ImageURL returns the URL to send for an image part: the remote URL as is,
// or a data URI built from inline base64 data.
func ImageURL(part ai.ContentPart) string {
	if part.Base64 != "" {
		mimeType := part.MimeType
		if mimeType == "" {
			mimeType = DefaultImageMimeType
		}
		return fmt.Sprintf("data:%s;base64,%s", mimeType, part.Base64)
	}
	return part.ImageURL
}
