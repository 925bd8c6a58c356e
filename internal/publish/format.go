package publish

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fpang/astro-channel-bot/internal/horoscope"
	"github.com/fpang/astro-channel-bot/internal/telegram"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

const ellipsis = "…"

// markdownLink is a complete [text](url) entity.
var markdownLink = regexp.MustCompile(`\[[^\]\n]*\]\([^)\s]+\)`)

// FormatPost renders a channel post in Telegram Markdown:
//
//	*♈ Овен*
//
//	воскресенье, 18 октября.
//
//	<body>
//
//	☄️Luory
func FormatPost(sign zodiac.Sign, date time.Time, body, signature string) string {
	head, tail := frame(sign, date, signature)
	return head + sanitizeMarkdown(strings.TrimSpace(body)) + tail
}

// FormatCaption is FormatPost shortened to fit a photo caption. Only the
// body is shortened; title, date and signature are always kept.
func FormatCaption(sign zodiac.Sign, date time.Time, body, signature string) string {
	head, tail := frame(sign, date, signature)
	body = strings.TrimSpace(body)
	room := telegram.MaxCaptionRunes - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	if room < 1 {
		room = 1
	}
	if utf8.RuneCountInString(body) > room {
		r := []rune(body)
		body = strings.TrimRight(string(r[:room-1]), " \n") + ellipsis
	}
	return head + sanitizeMarkdown(body) + tail
}

func frame(sign zodiac.Sign, date time.Time, signature string) (string, string) {
	head := "*" + sign.Title() + "*\n\n" + horoscope.FormatDateRU(date) + ".\n\n"
	tail := ""
	if signature != "" {
		tail = "\n\n" + signature
	}
	return head, tail
}

// sanitizeMarkdown keeps model output from breaking Telegram's legacy
// Markdown parser, which rejects the whole message on an unclosed entity.
func sanitizeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "*")
	s = strings.ReplaceAll(s, "__", "_")
	for _, marker := range []string{"*", "_", "`"} {
		if strings.Count(s, marker)%2 != 0 {
			s = strings.ReplaceAll(s, marker, `\`+marker)
		}
	}
	return escapeOpenBrackets(s)
}

// escapeOpenBrackets escapes every "[" that does not open a complete link.
func escapeOpenBrackets(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}
	links := markdownLink.FindAllStringIndex(s, -1)
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '[' && (i == 0 || s[i-1] != '\\') && !startsLink(links, i) {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func startsLink(links [][]int, i int) bool {
	for _, l := range links {
		if l[0] == i {
			return true
		}
	}
	return false
}
