package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// wireMessage is a chat message as sent by callers. Content is either a
// string or a list of typed parts.
type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wirePart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

func invalid(field, format string, args ...any) *ai.ValidationError {
	return &ai.ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// parseMessages validates and converts the chat message list.
func parseMessages(raw json.RawMessage) ([]ai.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ai.Missing("messages")
	}
	if raw[0] != '[' {
		return nil, invalid("messages", "messages must be an array")
	}

	var wire []wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, invalid("messages", "messages must be an array of {role, content} objects")
	}
	if len(wire) == 0 {
		return nil, invalid("messages", "messages must not be empty")
	}

	out := make([]ai.Message, 0, len(wire))
	for i, m := range wire {
		role := ai.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		switch role {
		case ai.RoleSystem, ai.RoleUser, ai.RoleAssistant:
		default:
			return nil, invalid("messages", "messages[%d].role must be one of system, user, assistant", i)
		}

		msg, err := parseContent(i, m.Content)
		if err != nil {
			return nil, err
		}
		if msg.HasParts() && role != ai.RoleUser {
			return nil, invalid("messages", "messages[%d].content must be a string for role %s", i, role)
		}
		msg.Role = role
		out = append(out, msg)
	}
	return out, nil
}

func parseContent(i int, raw json.RawMessage) (ai.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ai.Message{}, invalid("messages", "messages[%d].content is required", i)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ai.Message{}, invalid("messages", "messages[%d].content is not a valid string", i)
		}
		if strings.TrimSpace(s) == "" {
			return ai.Message{}, invalid("messages", "messages[%d].content is required", i)
		}
		return ai.Message{Content: s}, nil
	case '[':
		var parts []wirePart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return ai.Message{}, invalid("messages", "messages[%d].content parts are malformed", i)
		}
		if len(parts) == 0 {
			return ai.Message{}, invalid("messages", "messages[%d].content is required", i)
		}
		msg := ai.Message{Parts: make([]ai.ContentPart, 0, len(parts))}
		for j, p := range parts {
			switch p.Type {
			case "text":
				if strings.TrimSpace(p.Text) == "" {
					return ai.Message{}, invalid("messages", "messages[%d].content[%d].text is required", i, j)
				}
				msg.Parts = append(msg.Parts, ai.NewTextPart(p.Text))
			case "image_url":
				if p.ImageURL == nil || p.ImageURL.URL == "" {
					return ai.Message{}, invalid("messages", "messages[%d].content[%d].image_url.url is required", i, j)
				}
				msg.Parts = append(msg.Parts, ai.NewImageURLPart(p.ImageURL.URL))
			default:
				return ai.Message{}, invalid("messages", "messages[%d].content[%d] has unsupported type %q", i, j, p.Type)
			}
		}
		return msg, nil
	default:
		return ai.Message{}, invalid("messages", "messages[%d].content must be a string or an array of parts", i)
	}
}
