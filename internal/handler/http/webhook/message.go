package webhook

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// inboundMessage is the normalized shape pulled out of a message.receive
// event, regardless of which content encoding the platform used.
type inboundMessage struct {
	MessageID   string
	ChatID      string
	ChatType    string // "p2p" or "group"
	SenderID    string
	Text        string
	MentionsBot bool
}

// parseInboundMessage extracts the normalized message from a raw
// im.message.receive_v1 event payload.
func parseInboundMessage(event []byte, botOpenID string) inboundMessage {
	root := gjson.ParseBytes(event)
	msg := root.Get("message")

	text := parseMessageContent(msg.Get("content").String())

	m := inboundMessage{
		MessageID: msg.Get("message_id").String(),
		ChatID:    msg.Get("chat_id").String(),
		ChatType:  msg.Get("chat_type").String(),
		SenderID:  root.Get("sender.sender_id.open_id").String(),
		Text:      text,
	}

	if botOpenID != "" {
		for _, mention := range msg.Get("mentions").Array() {
			if mention.Get("id.open_id").String() == botOpenID {
				m.MentionsBot = true
				break
			}
		}
	}

	return m
}

// parseMessageContent extracts a plain-text rendering from a message's
// content field, which arrives as one of three shapes: a bare string, a JSON
// object {"text":"..."}, or a rich post {"content":[[{tag,...}]]}.
func parseMessageContent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return raw
	}

	if text := parsed.Get("text"); text.Exists() {
		return text.String()
	}

	if content := parsed.Get("content"); content.IsArray() {
		var b strings.Builder
		for _, line := range content.Array() {
			for _, elem := range line.Array() {
				switch elem.Get("tag").String() {
				case "text":
					b.WriteString(elem.Get("text").String())
				case "at":
					b.WriteString(elem.Get("text").String())
				}
			}
		}
		return b.String()
	}

	return raw
}

var mentionPlaceholder = regexp.MustCompile(`@_user_\d+|@\S+`)

// extractQuestion strips @-mention placeholders (both the raw
// "@_user_N" form and resolved "@DisplayName" forms) from parsed message
// text, leaving the user's actual question.
func extractQuestion(text string) string {
	stripped := mentionPlaceholder.ReplaceAllString(text, "")
	return strings.TrimSpace(stripped)
}

// requiresResponse decides whether the bot should answer, per spec §4.18
// step 7: a private chat always gets a reply; a group chat only replies
// when the bot was mentioned.
func requiresResponse(m inboundMessage) bool {
	return m.ChatType == "p2p" || m.MentionsBot
}
