package query

import (
	"strings"
	"unicode"
)

// Inputs is a search query split into the parts the recommendation rules
// care about. Every field is optional.
type Inputs struct {
	Raw        string `json:"raw,omitempty"`
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	City       string `json:"city,omitempty"`
	Profession string `json:"profession,omitempty"`
}

// SearchQuery returns the text sent to search backends.
func (in Inputs) SearchQuery() string {
	var parts []string
	for _, p := range []string{in.Name, in.Profession, in.Company, in.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return strings.Join(strings.Fields(in.Raw), " ")
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether there is nothing to search for.
func (in Inputs) IsEmpty() bool {
	return in.SearchQuery() == ""
}

// Merge fills empty fields of in from other.
func (in Inputs) Merge(other Inputs) Inputs {
	if in.Raw == "" {
		in.Raw = other.Raw
	}
	if in.Name == "" {
		in.Name = other.Name
	}
	if in.Company == "" {
		in.Company = other.Company
	}
	if in.City == "" {
		in.City = other.City
	}
	if in.Profession == "" {
		in.Profession = other.Profession
	}
	return in
}

var fieldAliases = map[string]string{
	"name":       "name",
	"company":    "company",
	"co":         "company",
	"org":        "company",
	"brand":      "company",
	"city":       "city",
	"loc":        "city",
	"location":   "city",
	"profession": "profession",
	"category":   "profession",
	"job":        "profession",
}

// Professions recognised in free text.
var Professions = map[string]bool{
	"accountant": true, "architect": true, "attorney": true, "bakery": true,
	"barber": true, "cardiologist": true, "chiropractor": true, "coach": true,
	"consultant": true, "contractor": true, "dentist": true, "dermatologist": true,
	"designer": true, "doctor": true, "electrician": true, "lawyer": true,
	"mechanic": true, "nurse": true, "optometrist": true, "orthodontist": true,
	"pediatrician": true, "pharmacist": true, "photographer": true, "physician": true,
	"physiotherapist": true, "plumber": true, "psychiatrist": true, "psychologist": true,
	"realtor": true, "restaurant": true, "salon": true, "surgeon": true,
	"therapist": true, "trainer": true, "tutor": true, "veterinarian": true,
}

// Parse splits free text into Inputs. It understands key:value tokens
// (values may be double-quoted), a trailing "in <City>" phrase, an
// "at <Company>" phrase and profession words. The rest becomes the name.
func Parse(raw string) Inputs {
	in := Inputs{Raw: strings.TrimSpace(raw)}

	var free []string
	for _, tok := range tokenize(raw) {
		if key, value, ok := strings.Cut(tok, ":"); ok && value != "" {
			if field, known := fieldAliases[strings.ToLower(key)]; known {
				in.set(field, strings.Trim(value, `"`))
				continue
			}
		}
		free = append(free, strings.Trim(tok, `"`))
	}

	free = in.takePhrase(free, "in", "city")
	free = in.takePhrase(free, "at", "company")

	var name []string
	for _, w := range free {
		lw := strings.ToLower(strings.Trim(w, ".,;"))
		if in.Profession == "" && Professions[lw] {
			in.Profession = lw
			continue
		}
		name = append(name, w)
	}
	if in.Name == "" {
		in.Name = strings.Join(name, " ")
	}
	return in
}

func (in *Inputs) set(field, value string) {
	value = strings.TrimSpace(value)
	switch field {
	case "name":
		in.Name = value
	case "company":
		in.Company = value
	case "city":
		in.City = value
	case "profession":
		in.Profession = strings.ToLower(value)
	}
}

// takePhrase removes the last "<marker> Capitalized Words" run from words
// and assigns it to field when that field is still empty.
func (in *Inputs) takePhrase(words []string, marker, field string) []string {
	if in.get(field) != "" {
		return words
	}
	for i := len(words) - 2; i >= 0; i-- {
		if !strings.EqualFold(words[i], marker) {
			continue
		}
		end := i + 1
		for end < len(words) && isCapitalized(words[end]) {
			end++
		}
		if end == i+1 {
			continue
		}
		in.set(field, strings.Trim(strings.Join(words[i+1:end], " "), ".,;"))
		return append(append([]string{}, words[:i]...), words[end:]...)
	}
	return words
}

func (in *Inputs) get(field string) string {
	switch field {
	case "name":
		return in.Name
	case "company":
		return in.Company
	case "city":
		return in.City
	case "profession":
		return in.Profession
	}
	return ""
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// tokenize splits on whitespace while keeping double-quoted runs together.
func tokenize(s string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
