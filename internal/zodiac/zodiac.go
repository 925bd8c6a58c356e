// Package zodiac is the fixed registry of the twelve signs the bot can
// publish for. The table is built once and never mutated; callers get
// values, not pointers into it.
package zodiac

import "strings"

// Sign is one publishable category.
type Sign struct {
	// Key is the canonical lowercase identifier (callback data, snapshot key).
	Key         string
	DisplayName string
	Emoji       string
	// Rulers are the governing bodies named in the prompt.
	Rulers []string
}

// Title returns the "<emoji> <name>" headline used in posts and buttons.
func (s Sign) Title() string {
	return s.Emoji + " " + s.DisplayName
}

// RulersText joins the governing bodies for prompt text.
func (s Sign) RulersText() string {
	return strings.Join(s.Rulers, ", ")
}

var registry = []Sign{
	{Key: "aries", DisplayName: "Овен", Emoji: "♈", Rulers: []string{"Марс"}},
	{Key: "taurus", DisplayName: "Телец", Emoji: "♉", Rulers: []string{"Венера"}},
	{Key: "gemini", DisplayName: "Близнецы", Emoji: "♊", Rulers: []string{"Меркурий"}},
	{Key: "cancer", DisplayName: "Рак", Emoji: "♋", Rulers: []string{"Луна"}},
	{Key: "leo", DisplayName: "Лев", Emoji: "♌", Rulers: []string{"Солнце"}},
	{Key: "virgo", DisplayName: "Дева", Emoji: "♍", Rulers: []string{"Меркурий"}},
	{Key: "libra", DisplayName: "Весы", Emoji: "♎", Rulers: []string{"Венера"}},
	{Key: "scorpio", DisplayName: "Скорпион", Emoji: "♏", Rulers: []string{"Плутон", "Марс"}},
	{Key: "sagittarius", DisplayName: "Стрелец", Emoji: "♐", Rulers: []string{"Юпитер"}},
	{Key: "capricorn", DisplayName: "Козерог", Emoji: "♑", Rulers: []string{"Сатурн"}},
	{Key: "aquarius", DisplayName: "Водолей", Emoji: "♒", Rulers: []string{"Уран", "Сатурн"}},
	{Key: "pisces", DisplayName: "Рыбы", Emoji: "♓", Rulers: []string{"Нептун", "Юпитер"}},
}

var byKey = func() map[string]int {
	m := make(map[string]int, len(registry))
	for i, s := range registry {
		m[s.Key] = i
	}
	return m
}()

// All returns the signs in zodiac order.
func All() []Sign {
	out := make([]Sign, len(registry))
	for i, s := range registry {
		out[i] = clone(s)
	}
	return out
}

// Keys returns the canonical keys in zodiac order.
func Keys() []string {
	keys := make([]string, len(registry))
	for i, s := range registry {
		keys[i] = s.Key
	}
	return keys
}

// Lookup finds a sign by key. Surrounding whitespace and case are ignored.
func Lookup(key string) (Sign, bool) {
	i, ok := byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Sign{}, false
	}
	return clone(registry[i]), true
}

func clone(s Sign) Sign {
	s.Rulers = append([]string(nil), s.Rulers...)
	return s
}
