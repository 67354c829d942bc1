// Package conversations lists the signed-in user's conversations and
// drives the conversation list cells.
package conversations

import (
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
	"github.com/louisbranch/messenger/internal/services/profile/render"
)

const (
	// StoredDateLayout is the timestamp format written with each message.
	StoredDateLayout = "Jan 2, 2006 at 3:04:05 PM MST"
	// DisplayDateLayout is the timestamp format shown in a cell.
	DisplayDateLayout = "Jan 2, 3:04 PM"
)

// ErrMalformedConversation indicates a stored conversation that cannot be decoded.
var ErrMalformedConversation = apperrors.New(apperrors.CodeMalformedProfile, "conversation record is malformed")

// Message is the latest message of a conversation.
type Message struct {
	Text   string `json:"message"`
	Date   string `json:"date"`
	IsRead bool   `json:"is_read"`
}

// Conversation is one entry of the conversation list.
type Conversation struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	OtherUserEmail string  `json:"other_user_email"`
	LatestMessage  Message `json:"latest_message"`
}

// Record returns the stored representation of c.
func (c Conversation) Record() map[string]any {
	return map[string]any{
		"name":             c.Name,
		"other_user_email": c.OtherUserEmail,
		"latest_message": map[string]any{
			"message": c.LatestMessage.Text,
			"date":    c.LatestMessage.Date,
			"is_read": c.LatestMessage.IsRead,
		},
	}
}

var pacific = loadPacific()

func loadPacific() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}

// FormatDate converts a stored message timestamp into its display form.
// Timestamps that do not parse render as the localized "N/A".
func FormatDate(raw string, loc render.Localizer) string {
	parsed, ok := parseDate(raw)
	if !ok {
		return render.DateUnknown(loc)
	}
	return parsed.In(pacific).Format(DisplayDateLayout)
}

// StoredDate formats t the way message timestamps are stored.
func StoredDate(t time.Time) string {
	return t.In(pacific).Format(StoredDateLayout)
}

func parseDate(raw string) (time.Time, bool) {
	parsed, err := time.ParseInLocation(StoredDateLayout, strings.TrimSpace(raw), pacific)
	if err != nil {
		return time.Time{}, false
	}
	if parsed.Location() == pacific {
		return parsed, true
	}
	// Abbreviations pacific does not know get a fixed zone whose offset is
	// not applied to the instant. Only UTC and GMT[+-]h are trusted.
	name, offset := parsed.Zone()
	switch {
	case name == "UTC" || name == "GMT":
		return parsed, true
	case strings.HasPrefix(name, "GMT") && offset != 0:
		return parsed.Add(-time.Duration(offset) * time.Second), true
	default:
		return time.Time{}, false
	}
}

// decodeList converts the stored conversations subtree into a list ordered
// by latest message, newest first.
func decodeList(value any) ([]Conversation, error) {
	entries, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrMalformedConversation, value)
	}
	out := make([]Conversation, 0, len(entries))
	for id, raw := range entries {
		fields, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %q is %T", ErrMalformedConversation, id, raw)
		}
		conversation := Conversation{
			ID:             id,
			Name:           stringField(fields, "name"),
			OtherUserEmail: stringField(fields, "other_user_email"),
		}
		if latest, ok := fields["latest_message"].(map[string]any); ok {
			conversation.LatestMessage = Message{
				Text: stringField(latest, "message"),
				Date: stringField(latest, "date"),
			}
			conversation.LatestMessage.IsRead, _ = latest["is_read"].(bool)
		}
		if conversation.OtherUserEmail == "" {
			return nil, fmt.Errorf("%w: entry %q has no other_user_email", ErrMalformedConversation, id)
		}
		out = append(out, conversation)
	}
	sort.SliceStable(out, func(i, j int) bool {
		left, leftOK := parseDate(out[i].LatestMessage.Date)
		right, rightOK := parseDate(out[j].LatestMessage.Date)
		switch {
		case leftOK && rightOK && !left.Equal(right):
			return left.After(right)
		case leftOK != rightOK:
			return leftOK
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out, nil
}

func stringField(fields map[string]any, name string) string {
	value, _ := fields[name].(string)
	return value
}
