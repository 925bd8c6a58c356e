package astronomy

// Body names as reported by the provider.
const (
	Sun     = "Sun"
	Moon    = "Moon"
	Mercury = "Mercury"
	Venus   = "Venus"
	Mars    = "Mars"
	Jupiter = "Jupiter"
	Saturn  = "Saturn"
	Uranus  = "Uranus"
	Neptune = "Neptune"
	Pluto   = "Pluto"
)

// Bodies is the fixed set every fact set must cover, in prompt order.
var Bodies = []string{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}

var bodyNamesRU = map[string]string{
	Sun:     "Солнце",
	Moon:    "Луна",
	Mercury: "Меркурий",
	Venus:   "Венера",
	Mars:    "Марс",
	Jupiter: "Юпитер",
	Saturn:  "Сатурн",
	Uranus:  "Уран",
	Neptune: "Нептун",
	Pluto:   "Плутон",
}

// BodyNameRU returns the Russian name of a body, or the input if unknown.
func BodyNameRU(body string) string {
	if name, ok := bodyNamesRU[body]; ok {
		return name
	}
	return body
}

// Fact is the constellation one body occupies.
type Fact struct {
	Body          string
	Constellation string
}

// FactSet holds one fact per body in Bodies order. The zero value is empty;
// only FetchPositions and NewFactSet produce complete sets.
type FactSet struct {
	facts []Fact
}

// NewFactSet builds a complete set from a body→constellation map. It
// returns false if any body is missing.
func NewFactSet(constellations map[string]string) (FactSet, bool) {
	facts := make([]Fact, 0, len(Bodies))
	for _, body := range Bodies {
		c, ok := constellations[body]
		if !ok || c == "" {
			return FactSet{}, false
		}
		facts = append(facts, Fact{Body: body, Constellation: c})
	}
	return FactSet{facts: facts}, true
}

// Facts returns the facts in Bodies order.
func (s FactSet) Facts() []Fact {
	return append([]Fact(nil), s.facts...)
}

// Constellation returns the constellation of body, or "" if not present.
func (s FactSet) Constellation(body string) string {
	for _, f := range s.facts {
		if f.Body == body {
			return f.Constellation
		}
	}
	return ""
}

// Complete reports whether every body is covered.
func (s FactSet) Complete() bool {
	return len(s.facts) == len(Bodies)
}
