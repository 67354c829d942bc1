// Package render builds the profile screen presentation model.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/messenger/internal/services/profile/session"
)

const (
	keyName                    = "profile.row.name"
	keyNameEmpty               = "profile.row.name.empty"
	keyEmail                   = "profile.row.email"
	keyEmailEmpty              = "profile.row.email.empty"
	keyPresence                = "profile.row.presence"
	keyLogout                  = "profile.row.logout"
	keyUnavailable             = "profile.row.unavailable"
	keyConversationDateUnknown = "conversation.date.unknown"

	defaultName        = "Name: %s"
	defaultNameEmpty   = "No Name"
	defaultEmail       = "Email: %s"
	defaultEmailEmpty  = "No Email"
	defaultPresence    = "Active Status"
	defaultLogout      = "Log Out"
	defaultUnavailable = "Profile data unavailable"
	defaultDateUnknown = "N/A"
)

// RowKind identifies the row variant.
type RowKind int

const (
	// RowInfo is a read-only label.
	RowInfo RowKind = iota
	// RowToggle is a labelled switch.
	RowToggle
	// RowAction is a tappable row that runs Effect.
	RowAction
)

// String returns the JSON name of the kind.
func (k RowKind) String() string {
	switch k {
	case RowToggle:
		return "toggle"
	case RowAction:
		return "action"
	default:
		return "info"
	}
}

// Row is one entry of the presentation model.
type Row struct {
	Kind  RowKind
	Label string
	// State is the toggle position; only meaningful for RowToggle.
	State bool
	// Failed marks a toggle whose last write was rejected.
	Failed bool
	// Effect runs when an action row is selected.
	Effect func()
}

// Presence is the last fetched presence flag.
type Presence struct {
	Known  bool
	Active bool
}

// Localizer is the minimal message-printer contract required by the builder.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

var supported = []language.Tag{language.English, language.BrazilianPortuguese}

var matcher = language.NewMatcher(supported)

// NewLocalizer returns a printer for the best supported match of locale.
func NewLocalizer(locale string) *message.Printer {
	tag, _ := language.MatchStrings(matcher, strings.TrimSpace(locale))
	base, _ := tag.Base()
	for _, candidate := range supported {
		candidateBase, _ := candidate.Base()
		if candidateBase == base {
			return message.NewPrinter(candidate)
		}
	}
	return message.NewPrinter(language.English)
}

// Build returns the rows in their fixed order: name, email, presence
// toggle, logout action. Unknown presence renders inactive.
func Build(loc Localizer, identity session.Identity, presence Presence, onLogout func()) []Row {
	return []Row{
		{Kind: RowInfo, Label: nameLabel(loc, identity.DisplayName)},
		{Kind: RowInfo, Label: emailLabel(loc, identity.Email)},
		PresenceRow(loc, presence, false),
		{Kind: RowAction, Label: localizeWithFallback(loc, keyLogout, defaultLogout), Effect: onLogout},
	}
}

// PresenceRow returns the toggle row for presence.
func PresenceRow(loc Localizer, presence Presence, failed bool) Row {
	return Row{
		Kind:   RowToggle,
		Label:  localizeWithFallback(loc, keyPresence, defaultPresence),
		State:  presence.Known && presence.Active,
		Failed: failed,
	}
}

// UnavailableRow is appended when the last profile fetch failed.
func UnavailableRow(loc Localizer) Row {
	return Row{Kind: RowInfo, Label: localizeWithFallback(loc, keyUnavailable, defaultUnavailable)}
}

// DateUnknown is the placeholder for unparsable conversation dates.
func DateUnknown(loc Localizer) string {
	return localizeWithFallback(loc, keyConversationDateUnknown, defaultDateUnknown)
}

func nameLabel(loc Localizer, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = localizeWithFallback(loc, keyNameEmpty, defaultNameEmpty)
	}
	return localizeFormat(loc, keyName, defaultName, name)
}

func emailLabel(loc Localizer, email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		email = localizeWithFallback(loc, keyEmailEmpty, defaultEmailEmpty)
	}
	return localizeFormat(loc, keyEmail, defaultEmail, email)
}

func localizeFormat(loc Localizer, key, fallback string, arg string) string {
	if loc != nil {
		if value := strings.TrimSpace(loc.Sprintf(key, arg)); value != "" && value != key {
			return value
		}
	}
	return strings.Replace(fallback, "%s", arg, 1)
}

func localizeWithFallback(loc Localizer, key, fallback string) string {
	if loc == nil {
		return fallback
	}
	value := strings.TrimSpace(loc.Sprintf(key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
