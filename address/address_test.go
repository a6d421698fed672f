package address

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"88 Scott Street, Toronto, ON", "88 scott st"},
		{"88 Scott St", "88 scott st"},
		{"100 Queen Street West Apt 501", "100 queen st w"},
		{"100 Queen St W #501", "100 queen st w"},
		{"1203 - 88 Scott Street", "1203 - 88 scott st"},
		{"AURA - 386 Yonge Street", "386 yonge st"},
		{"PH3 - 8 The Esplanade", "8 the esplanade"},
		{"25 Telegram Mews | Toronto", "25 telegram mews"},
		{"386 Yonge Avenue", "386 yonge ave"},
		{"  12  Yonge   Blvd  ", "12 yonge blvd"},
		{"", ""},
	}

	for _, tc := range cases {
		got := Canonical(tc.raw)
		if got != tc.want {
			t.Fatalf("Canonical(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestStripUnit(t *testing.T) {
	if got := StripUnit("1203 - 88 scott st"); got != "88 scott st" {
		t.Fatalf("expected unit prefix stripped, got %q", got)
	}
	if got := StripUnit("88 scott st"); got != "88 scott st" {
		t.Fatalf("expected address unchanged, got %q", got)
	}
	if got := StripUnit("ph3 - 8 the esplanade"); got != "ph3 - 8 the esplanade" {
		// Non-numeric unit tokens are not prefix-stripped.
		t.Fatalf("expected address unchanged, got %q", got)
	}
}

func TestAlternates(t *testing.T) {
	alts := Alternates("1203 - 88 Scott Street")

	want := []string{
		"88 scott st",
		"1203 - 88 scott street",
		"88 scott street",
	}
	if len(alts) != len(want) {
		t.Fatalf("expected %d alternates, got %d: %v", len(want), len(alts), alts)
	}
	for i, w := range want {
		if alts[i] != w {
			t.Fatalf("alternate %d: expected %q, got %q", i, w, alts[i])
		}
	}
}

func TestAlternates_NoUnit(t *testing.T) {
	alts := Alternates("88 Scott Street")
	if len(alts) != 1 {
		t.Fatalf("expected 1 alternate, got %d: %v", len(alts), alts)
	}
	if alts[0] != "88 scott street" {
		t.Fatalf("expected expanded street type, got %q", alts[0])
	}
}

func TestSameBuilding(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"88 Scott Street", "88 Scott St", true},
		{"1203 - 88 Scott St", "88 Scott Street", true},
		{"505 - 88 Scott St", "1203 - 88 Scott St", true},
		{"88 Scott St", "90 Scott St", false},
		{"88 Scott St", "88 King St", false},
		{"", "88 Scott St", false},
	}

	for _, tc := range cases {
		if got := SameBuilding(tc.a, tc.b); got != tc.want {
			t.Fatalf("SameBuilding(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"AURA - 386 Yonge Street", "Aura"},
		{"386 Yonge St (Aura)", "Aura"},
		{"THE MERCER RESIDENCES 8 Mercer St", "The Mercer Residences"},
		{"88 Scott St", ""},
		{"1203 - 88 Scott St", ""},
		{"", ""},
	}

	for _, tc := range cases {
		got := DisplayName(tc.raw)
		if tc.want == "" {
			if got != nil {
				t.Fatalf("DisplayName(%q) = %q, want nil", tc.raw, *got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("DisplayName(%q) = nil, want %q", tc.raw, tc.want)
		}
		if *got != tc.want {
			t.Fatalf("DisplayName(%q) = %q, want %q", tc.raw, *got, tc.want)
		}
	}
}
