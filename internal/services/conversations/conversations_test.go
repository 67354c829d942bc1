package conversations

import (
	"errors"
	"testing"

	"github.com/louisbranch/messenger/internal/services/profile/render"
)

func TestFormatDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Mar 5, 2024 at 1:07:09 PM PST", want: "Mar 5, 1:07 PM"},
		{raw: "Jul 4, 2024 at 9:30:00 AM PDT", want: "Jul 4, 9:30 AM"},
		{raw: "  Dec 31, 2023 at 11:59:59 PM PST ", want: "Dec 31, 11:59 PM"},
		{raw: "Jan 2, 2024 at 3:04:05 PM GMT", want: "Jan 2, 7:04 AM"},
		{raw: "Jan 2, 2024 at 3:04:05 PM UTC", want: "Jan 2, 7:04 AM"},
		{raw: "Jan 2, 2024 at 3:04:05 PM GMT+1", want: "Jan 2, 6:04 AM"},
		{raw: "Jan 2, 2024 at 3:04:05 AM GMT-3", want: "Jan 1, 10:04 PM"},
		{raw: "Jan 2, 2024 at 3:04:05 PM EST", want: "N/A"},
		{raw: "Jan 2, 2024 at 3:04:05 PM CET", want: "N/A"},
		{raw: "2024-03-05T13:07:09Z", want: "N/A"},
		{raw: "", want: "N/A"},
	}
	for _, tc := range tests {
		if got := FormatDate(tc.raw, nil); got != tc.want {
			t.Fatalf("FormatDate(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestFormatDateSameInstantAcrossZones(t *testing.T) {
	t.Parallel()

	pst := FormatDate("Jan 2, 2024 at 12:04:05 PM PST", nil)
	gmt := FormatDate("Jan 2, 2024 at 9:04:05 PM GMT+1", nil)
	if pst != gmt {
		t.Fatalf("PST = %q, GMT+1 = %q, want equal", pst, gmt)
	}
}

func TestFormatDateLocalizesUnknown(t *testing.T) {
	t.Parallel()

	if got := FormatDate("yesterday", render.NewLocalizer("pt-BR")); got != "N/D" {
		t.Fatalf("FormatDate = %q, want %q", got, "N/D")
	}
}

func TestDecodeListOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	value := map[string]any{
		"c1": map[string]any{
			"name":             "Bob",
			"other_user_email": "bob@x.com",
			"latest_message":   map[string]any{"message": "hi", "date": "Mar 5, 2024 at 1:07:09 PM PST", "is_read": true},
		},
		"c2": map[string]any{
			"name":             "Cy",
			"other_user_email": "cy@x.com",
			"latest_message":   map[string]any{"message": "yo", "date": "Mar 6, 2024 at 8:00:00 AM PST", "is_read": false},
		},
		"c3": map[string]any{
			"name":             "Di",
			"other_user_email": "di@x.com",
			"latest_message":   map[string]any{"message": "?", "date": "someday"},
		},
	}

	list, err := decodeList(value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var ids []string
	for _, conversation := range list {
		ids = append(ids, conversation.ID)
	}
	if len(ids) != 3 || ids[0] != "c2" || ids[1] != "c1" || ids[2] != "c3" {
		t.Fatalf("order = %v, want [c2 c1 c3]", ids)
	}
	if list[1].LatestMessage.Text != "hi" || !list[1].LatestMessage.IsRead {
		t.Fatalf("c1 message = %+v", list[1].LatestMessage)
	}
}

func TestDecodeListRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, value := range []any{
		"not a map",
		map[string]any{"c1": "flat"},
		map[string]any{"c1": map[string]any{"name": "No Partner"}},
	} {
		if _, err := decodeList(value); !errors.Is(err, ErrMalformedConversation) {
			t.Fatalf("decodeList(%v) err = %v, want %v", value, err, ErrMalformedConversation)
		}
	}
}
