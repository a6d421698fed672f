package mediadedup

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"condosync/models"
	"condosync/provider"
)

var (
	// Resize tokens embedded in provider URLs: "...photo-12-t.jpg",
	// "...photo-12-l.jpg", "/thumbnail/", "/large/".
	suffixTokenRegex = regexp.MustCompile(`-(t|s|m|l|xl)$`)
	sizeSegments     = map[string]string{
		"thumbnail": models.VariantThumbnail,
		"thumb":     models.VariantThumbnail,
		"small":     models.VariantThumbnail,
		"large":     models.VariantLarge,
		"largest":   models.VariantLarge,
		"highres":   models.VariantLarge,
	}
	suffixVariants = map[string]string{
		"t":  models.VariantThumbnail,
		"s":  models.VariantThumbnail,
		"l":  models.VariantLarge,
		"xl": models.VariantLarge,
	}
)

// Dedupe collapses the raw media variant list for one listing into at most
// one thumbnail and one large asset per logical photo, ordered. Variants
// are stable-sorted by the provider order field first, so when two rows
// match the same size signature within a group the first by sort order
// wins. Groups with no recognizable variant are dropped.
func Dedupe(listingKey string, raw []provider.MediaRecord, now time.Time) []models.MediaAsset {
	variants := make([]provider.MediaRecord, 0, len(raw))
	for _, m := range raw {
		if m.MediaURL == "" && m.MediaKey == "" {
			continue
		}
		variants = append(variants, m)
	}

	// Missing or unparsable order sorts last.
	sort.SliceStable(variants, func(i, j int) bool {
		oi, oj := orderOf(variants[i]), orderOf(variants[j])
		return oi < oj
	})

	type group struct {
		thumbnail *provider.MediaRecord
		large     *provider.MediaRecord
	}
	groups := make(map[string]*group)
	var tokenOrder []string

	for i := range variants {
		m := &variants[i]
		token := PhotoToken(*m)
		if token == "" {
			continue
		}

		g, ok := groups[token]
		if !ok {
			g = &group{}
			groups[token] = g
			tokenOrder = append(tokenOrder, token)
		}

		switch variantOf(*m) {
		case models.VariantThumbnail:
			if g.thumbnail == nil {
				g.thumbnail = m
			}
		case models.VariantLarge:
			if g.large == nil {
				g.large = m
			}
		}
	}

	var assets []models.MediaAsset
	position := 0
	for _, token := range tokenOrder {
		g := groups[token]
		if g.thumbnail == nil && g.large == nil {
			continue
		}
		if g.thumbnail != nil {
			assets = append(assets, newAsset(listingKey, token, models.VariantThumbnail, g.thumbnail, position, now))
		}
		if g.large != nil {
			assets = append(assets, newAsset(listingKey, token, models.VariantLarge, g.large, position, now))
		}
		position++
	}

	return assets
}

func newAsset(listingKey, token, variant string, m *provider.MediaRecord, position int, now time.Time) models.MediaAsset {
	return models.MediaAsset{
		ID:           uuid.New(),
		ListingKey:   listingKey,
		PhotoToken:   token,
		Variant:      variant,
		SourceURL:    m.MediaURL,
		Order:        position,
		MirrorStatus: models.MirrorStatusPending,
		CreatedAt:    now,
	}
}

func orderOf(m provider.MediaRecord) int {
	if m.Order == nil {
		return int(^uint(0) >> 1) // sort last
	}
	return *m.Order
}

// PhotoToken derives the stable identity of the logical photo behind a
// variant row: the URL path stem with the resize token stripped, or the
// provider media key when no URL is present.
func PhotoToken(m provider.MediaRecord) string {
	if m.MediaURL != "" {
		if u, err := url.Parse(m.MediaURL); err == nil && u.Path != "" {
			stem := u.Path
			if idx := strings.LastIndex(stem, "/"); idx >= 0 {
				stem = stem[idx+1:]
			}
			if idx := strings.LastIndex(stem, "."); idx > 0 {
				stem = stem[:idx]
			}
			stem = suffixTokenRegex.ReplaceAllString(stem, "")
			if stem != "" {
				return strings.ToLower(stem)
			}
		}
	}
	if m.MediaKey != "" {
		return strings.ToLower(suffixTokenRegex.ReplaceAllString(m.MediaKey, ""))
	}
	return ""
}

// variantOf matches a row against the thumbnail/large size signatures:
// the explicit size-description field first, then URL-embedded tokens.
// Returns "" when neither matches.
func variantOf(m provider.MediaRecord) string {
	if desc := strings.ToLower(strings.TrimSpace(m.ImageSizeDescription)); desc != "" {
		if v, ok := sizeSegments[desc]; ok {
			return v
		}
	}

	if m.MediaURL == "" {
		return ""
	}
	u, err := url.Parse(m.MediaURL)
	if err != nil {
		return ""
	}
	lowerPath := strings.ToLower(u.Path)

	for _, segment := range strings.Split(lowerPath, "/") {
		if v, ok := sizeSegments[segment]; ok {
			return v
		}
	}

	stem := lowerPath
	if idx := strings.LastIndex(stem, "/"); idx >= 0 {
		stem = stem[idx+1:]
	}
	if idx := strings.LastIndex(stem, "."); idx > 0 {
		stem = stem[:idx]
	}
	if sfx := suffixTokenRegex.FindStringSubmatch(stem); sfx != nil {
		if v, ok := suffixVariants[sfx[1]]; ok {
			return v
		}
	}

	return ""
}
