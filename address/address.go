package address

import (
	"regexp"
	"strings"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "crt",
		"place":     "pl",
		"circle":    "cir",
		"crescent":  "cres",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"trail":     "trl",
		"gardens":   "gdns",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
	}
	streetExpansions = invert(streetReplacements)

	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s-]`)
	unitPrefixRegex = regexp.MustCompile(`^(\d+[a-z]?)\s*-\s*(\d+.*)$`)
	unitSuffixRegex = regexp.MustCompile(`\s+(apt|unit|suite|ste|ph|th|lph|uph|#)\s*\S*$`)
	// "aura - 386 yonge st": a leading building name or penthouse token
	// before the street number is not part of the street address.
	wordPrefixRegex = regexp.MustCompile(`^[a-z][a-z0-9 '&.]{0,40}?\s*-\s*(\d.*)$`)

	// "AURA - 386 Yonge Street" or "386 Yonge St (Aura)"
	namePrefixRegex = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 '&.]{2,40}?)\s+-\s+\d`)
	nameParenRegex  = regexp.MustCompile(`\(([A-Za-z][A-Za-z0-9 '&.]{2,40})\)`)
	// "THE MERCER RESIDENCES", "THE X CONDOS"
	nameCapsRegex = regexp.MustCompile(`\b(THE\s+[A-Z][A-Z0-9 ']+?\s+(?:RESIDENCES|CONDOS|LOFTS|TOWERS?))\b`)
)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Canonical normalizes a free-text street address into a comparable form:
// lowercased, punctuation stripped, street types and directions abbreviated,
// unit designators dropped. Unparseable input comes back trimmed but
// otherwise unchanged; there is no failure mode.
func Canonical(raw string) string {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if addr == "" {
		return ""
	}

	// Keep only the street portion when the provider appends city/province
	// after a comma or pipe.
	if idx := strings.IndexAny(addr, ",|"); idx > 0 {
		addr = addr[:idx]
	}

	if m := wordPrefixRegex.FindStringSubmatch(addr); m != nil {
		addr = m[1]
	}

	addr = unitSuffixRegex.ReplaceAllString(addr, "")
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	addr = strings.Join(words, " ")
	return multiSpaceRegex.ReplaceAllString(strings.TrimSpace(addr), " ")
}

// Alternates returns an ordered list of alternate canonical spellings to try
// when an exact canonical lookup misses: without a leading "unit - number"
// token, and with the street type expanded back to its full form.
func Alternates(raw string) []string {
	canonical := Canonical(raw)
	if canonical == "" {
		return nil
	}

	seen := map[string]bool{canonical: true}
	var alts []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			alts = append(alts, s)
		}
	}

	add(StripUnit(canonical))

	words := strings.Fields(canonical)
	for i, w := range words {
		if full, ok := streetExpansions[w]; ok && i > 0 {
			expanded := make([]string, len(words))
			copy(expanded, words)
			expanded[i] = full
			add(strings.Join(expanded, " "))
			break
		}
	}

	if stripped := StripUnit(canonical); stripped != canonical {
		words = strings.Fields(stripped)
		for i, w := range words {
			if full, ok := streetExpansions[w]; ok && i > 0 {
				expanded := make([]string, len(words))
				copy(expanded, words)
				expanded[i] = full
				add(strings.Join(expanded, " "))
				break
			}
		}
	}

	return alts
}

// StripUnit removes a leading "1203 - " style unit token from an already
// canonical address.
func StripUnit(canonical string) string {
	if m := unitPrefixRegex.FindStringSubmatch(canonical); m != nil {
		return strings.TrimSpace(m[2])
	}
	return canonical
}

// SameBuilding reports whether two raw addresses resolve to the same
// building: canonical forms match, or one contains the other once unit
// prefixes are stripped.
func SameBuilding(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	sa, sb := StripUnit(ca), StripUnit(cb)
	if sa == sb {
		return true
	}
	return strings.Contains(sa, sb) || strings.Contains(sb, sa)
}

// DisplayName extracts a best-effort building name from common provider
// address forms. Returns nil when no pattern matches.
func DisplayName(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if m := nameCapsRegex.FindStringSubmatch(raw); m != nil {
		name := titleCase(m[1])
		return &name
	}
	if m := namePrefixRegex.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		// A numeric prefix is a unit token, not a name.
		if !startsWithDigit(candidate) {
			name := titleCase(candidate)
			return &name
		}
	}
	if m := nameParenRegex.FindStringSubmatch(raw); m != nil {
		name := titleCase(strings.TrimSpace(m[1]))
		return &name
	}
	return nil
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
