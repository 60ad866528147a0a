package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"
)

// callbackNamespace prefixes every correlation token this system emits, so
// the responder can ignore callback data that belongs to other bots sharing
// the chat.
const callbackNamespace = "hook"

// Decisions carried in a correlation token.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

const (
	maxCommandDisplay = 500
	maxValueDisplay   = 100
	maxGenericFields  = 3
)

// Callback builds the correlation token for a decision button:
// "hook:<decision>:<request-id>".
func Callback(decision, requestID string) string {
	return callbackNamespace + ":" + decision + ":" + requestID
}

// ParseCallback splits a correlation token into request ID and decision.
// It reports ok=false for tokens from a different namespace, unknown
// decisions, or malformed data.
func ParseCallback(data string) (requestID, decision string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != callbackNamespace {
		return "", "", false
	}
	if parts[1] != DecisionAllow && parts[1] != DecisionDeny {
		return "", "", false
	}
	if parts[2] == "" {
		return "", "", false
	}
	return parts[2], parts[1], true
}

// ApprovalKeyboard returns the two-button inline keyboard for a request.
func ApprovalKeyboard(requestID string) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "✅ Allow", CallbackData: Callback(DecisionAllow, requestID)},
			{Text: "❌ Deny", CallbackData: Callback(DecisionDeny, requestID)},
		}},
	}
}

// FormatApproval renders the approval prompt as Telegram HTML.
// Tool parameters are display-only: known tools get a dedicated field,
// everything else falls back to a generic key/value listing.
func FormatApproval(tool string, input map[string]any, sessionID string) string {
	var b strings.Builder

	b.WriteString("🔔 <b>Approval required</b>\n\n")
	fmt.Fprintf(&b, "<b>Tool:</b> %s\n", html.EscapeString(tool))

	switch tool {
	case "Bash":
		command := truncate(stringField(input, "command"), maxCommandDisplay)
		fmt.Fprintf(&b, "<b>Command:</b>\n<code>%s</code>\n", html.EscapeString(command))
	case "Write", "Edit":
		path := stringField(input, "file_path")
		if path == "" {
			path = "unknown"
		}
		fmt.Fprintf(&b, "<b>File:</b> <code>%s</code>\n", html.EscapeString(path))
	case "NotebookEdit":
		path := stringField(input, "notebook_path")
		if path == "" {
			path = "unknown"
		}
		fmt.Fprintf(&b, "<b>Notebook:</b> <code>%s</code>\n", html.EscapeString(path))
	default:
		// Generic display: a few fields, stable order, values capped.
		keys := make([]string, 0, len(input))
		for k := range input {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > maxGenericFields {
			keys = keys[:maxGenericFields]
		}
		for _, k := range keys {
			v := truncate(fmt.Sprint(input[k]), maxValueDisplay)
			fmt.Fprintf(&b, "<b>%s:</b> %s\n", html.EscapeString(k), html.EscapeString(v))
		}
	}

	fmt.Fprintf(&b, "\n<i>Session: %s…</i>", html.EscapeString(truncate(sessionID, 8)))

	return b.String()
}

// FormatResolved renders the edited prompt after a decision has landed,
// replacing the keyboard with the outcome. The original is the plain text
// Telegram returned with the callback, so it is re-escaped for HTML.
func FormatResolved(original, decision string) string {
	escaped := html.EscapeString(original)
	switch decision {
	case DecisionAllow:
		return escaped + "\n\n✅ <b>Allowed</b>"
	case DecisionDeny:
		return escaped + "\n\n❌ <b>Denied</b>"
	}
	return escaped
}

func stringField(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

// truncate cuts s to at most limit bytes without splitting a rune. The Bot
// API rejects message bodies that are not valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
