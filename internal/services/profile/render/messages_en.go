package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, keyName, defaultName)
	message.SetString(lang, keyNameEmpty, defaultNameEmpty)
	message.SetString(lang, keyEmail, defaultEmail)
	message.SetString(lang, keyEmailEmpty, defaultEmailEmpty)
	message.SetString(lang, keyPresence, defaultPresence)
	message.SetString(lang, keyLogout, defaultLogout)
	message.SetString(lang, keyUnavailable, defaultUnavailable)
	message.SetString(lang, keyConversationDateUnknown, defaultDateUnknown)
}
