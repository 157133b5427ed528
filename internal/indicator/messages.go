package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	started    string
	stopped    string
	heard      string
	replied    string
	errorTitle string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			started:    "Listening…",
			stopped:    "Conversation ended",
			heard:      "You said",
			replied:    "Assistant",
			errorTitle: "Conversation error",
			errorText:  "Something went wrong",
		}
	}
}
