package widget

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zhouzirui/soulmate-widget/internal/model/widget"
)

// Fixed user-facing strings.
const (
	FallbackReply     = "Sorry, I didn't understand that."
	FallbackMood      = "😐 Neutral"
	ConnectionFailure = "Sorry, I couldn't connect to the server."

	JournalSaved  = "Journal saved."
	JournalFailed = "Failed to save journal."

	SummaryFailed  = "Failed to fetch summary."
	WellnessFailed = "Failed to check wellness."
)

// missing is what an absent field renders as.
const missing = "undefined"

// BotLine renders a chat reply as "<reply> (Mood: <mood>)". Empty fields count
// as absent.
func BotLine(resp widget.ChatResponse) string {
	reply := resp.Reply
	if reply == "" {
		reply = FallbackReply
	}
	mood := resp.Emotion
	if mood == "" {
		mood = FallbackMood
	}
	return reply + " (Mood: " + mood + ")"
}

// SummaryLine renders the mood summary region.
func SummaryLine(v widget.SummaryView) string {
	var b strings.Builder
	b.WriteString("Today's dominant mood is ")
	b.WriteString(fieldText(v.MoodSummary))
	b.WriteString(" (based on ")
	b.WriteString(fieldText(v.Entries))
	b.WriteString(" entries).")
	return b.String()
}

// WellnessLine renders the wellness region. A truthy status wins.
func WellnessLine(v widget.WellnessView) string {
	if v.Status != nil {
		if status, ok := decodeField(v.Status); ok && truthy(status) {
			return valueText(status)
		}
	}
	return "Wellness Score: " + fieldText(v.WellnessScore) +
		" / 100 | Loneliness Risk: " + fieldText(v.LonelinessRisk)
}

// fieldText renders a backend field the way the page's template strings do:
// absent is "undefined", null is "null", anything else is stringified.
func fieldText(raw json.RawMessage) string {
	if raw == nil {
		return missing
	}
	v, ok := decodeField(raw)
	if !ok {
		return string(raw)
	}
	return valueText(v)
}

func decodeField(raw json.RawMessage) (any, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return numberText(x)
	case []any:
		parts := make([]string, len(x))
		for i, elem := range x {
			if elem != nil {
				parts[i] = valueText(elem)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(x)
	}
}

// numberText prints the shortest form: 72, 72.5, 1e+21.
func numberText(f float64) string {
	abs := math.Abs(f)
	if f == 0 {
		return "0"
	}
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		s = strings.Replace(s, "e+0", "e+", 1)
		return strings.Replace(s, "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}
