package sms

import (
	"fmt"
	"strings"
)

// Minimal TwiML rendering for the voice and SMS webhook replies. The
// vendor expects these exact verbs; anything richer belongs in a
// template, not here.

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func TwiMLEmpty() string {
	return "<Response></Response>"
}

func TwiMLMessage(text string) string {
	return fmt.Sprintf("<Response><Message>%s</Message></Response>", xmlEscaper.Replace(text))
}

func TwiMLSay(text string) string {
	return fmt.Sprintf("<Response>\n  <Say>%s</Say>\n</Response>", xmlEscaper.Replace(text))
}

// TwiMLRecordPrompt asks the caller to record after a tone; the vendor
// posts the finished recording to action.
func TwiMLRecordPrompt(action string, maxSeconds int) string {
	return fmt.Sprintf(`<Response>
  <Say>Please leave your message after the tone.</Say>
  <Record action="%s" method="POST" maxLength="%d" />
  <Say>We did not receive a recording.</Say>
</Response>`, xmlEscaper.Replace(action), maxSeconds)
}
