package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BrazilianPortuguese

	message.SetString(lang, keyName, "Nome: %s")
	message.SetString(lang, keyNameEmpty, "Sem nome")
	message.SetString(lang, keyEmail, "E-mail: %s")
	message.SetString(lang, keyEmailEmpty, "Sem e-mail")
	message.SetString(lang, keyPresence, "Status ativo")
	message.SetString(lang, keyLogout, "Sair")
	message.SetString(lang, keyUnavailable, "Dados do perfil indisponíveis")
	message.SetString(lang, keyConversationDateUnknown, "N/D")
}
