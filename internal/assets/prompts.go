// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, so prompt policy can be edited without touching Go code.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// HoroscopeSystemPrompt frames the model as a professional astrologer.
//
//go:embed prompts/horoscope-system.txt
var HoroscopeSystemPrompt string

//go:embed prompts/horoscope-user.txt
var horoscopeUserTemplate string

// template.Must panics on malformed templates, catching errors at program
// startup rather than at call time.
var horoscopePromptTmpl = template.Must(template.New("horoscope").Parse(horoscopeUserTemplate))

// PromptFact is one "<body> in <constellation>" line of the prompt.
type PromptFact struct {
	Body          string
	Constellation string
}

// HoroscopePromptData holds the dynamic data injected into the user prompt.
type HoroscopePromptData struct {
	Sign   string
	Date   string
	Rulers string
	Facts  []PromptFact
}

// RenderHoroscopePrompt renders the user prompt for one sign and day.
func RenderHoroscopePrompt(data HoroscopePromptData) (string, error) {
	var buf bytes.Buffer
	if err := horoscopePromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
