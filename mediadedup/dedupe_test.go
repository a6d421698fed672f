package mediadedup

import (
	"testing"
	"time"

	"condosync/models"
	"condosync/provider"
)

func intPtr(v int) *int { return &v }

func mediaRecord(key, url string, order *int, sizeDesc string) provider.MediaRecord {
	return provider.MediaRecord{
		MediaKey:             key,
		ResourceRecordKey:    "W1000001",
		MediaURL:             url,
		Order:                order,
		ImageSizeDescription: sizeDesc,
	}
}

func TestDedupe(t *testing.T) {
	now := time.Now()

	// Seven raw variant rows covering two real photos plus noise: an
	// unrecognized medium variant, a duplicate large, and a photo with no
	// usable variant at all.
	raw := []provider.MediaRecord{
		mediaRecord("m1", "https://cdn.example.com/img/abc123-t.jpg", intPtr(1), ""),
		mediaRecord("m2", "https://cdn.example.com/img/abc123-l.jpg", intPtr(1), ""),
		mediaRecord("m3", "https://cdn.example.com/img/abc123-m.jpg", intPtr(1), ""),
		mediaRecord("m4", "https://cdn.example.com/img/def456-t.jpg", intPtr(2), ""),
		mediaRecord("m5", "https://cdn.example.com/img/def456-l.jpg", intPtr(2), ""),
		mediaRecord("m6", "https://cdn.example.com/img/def456-xl.jpg", intPtr(3), ""),
		mediaRecord("m7", "https://cdn.example.com/img/zzz999-m.jpg", intPtr(4), ""),
	}

	assets := Dedupe("W1000001", raw, now)

	if len(assets) != 4 {
		t.Fatalf("expected 4 assets, got %d", len(assets))
	}

	checks := []struct {
		token   string
		variant string
		url     string
		order   int
	}{
		{"abc123", models.VariantThumbnail, "https://cdn.example.com/img/abc123-t.jpg", 0},
		{"abc123", models.VariantLarge, "https://cdn.example.com/img/abc123-l.jpg", 0},
		{"def456", models.VariantThumbnail, "https://cdn.example.com/img/def456-t.jpg", 1},
		{"def456", models.VariantLarge, "https://cdn.example.com/img/def456-l.jpg", 1},
	}

	for i, want := range checks {
		a := assets[i]
		if a.PhotoToken != want.token {
			t.Fatalf("asset %d: expected token %s, got %s", i, want.token, a.PhotoToken)
		}
		if a.Variant != want.variant {
			t.Fatalf("asset %d: expected variant %s, got %s", i, want.variant, a.Variant)
		}
		if a.SourceURL != want.url {
			t.Fatalf("asset %d: expected url %s, got %s", i, want.url, a.SourceURL)
		}
		if a.Order != want.order {
			t.Fatalf("asset %d: expected order %d, got %d", i, want.order, a.Order)
		}
		if a.ListingKey != "W1000001" {
			t.Fatalf("asset %d: unexpected listing key %s", i, a.ListingKey)
		}
		if a.MirrorStatus != models.MirrorStatusPending {
			t.Fatalf("asset %d: expected pending mirror status, got %s", i, a.MirrorStatus)
		}
	}
}

func TestDedupe_SizeDescriptionWins(t *testing.T) {
	// The explicit size description takes precedence over URL tokens.
	raw := []provider.MediaRecord{
		mediaRecord("m1", "https://cdn.example.com/img/abc123.jpg", intPtr(1), "Thumbnail"),
		mediaRecord("m2", "https://cdn.example.com/img/abc123.jpg", intPtr(2), "Largest"),
	}

	assets := Dedupe("W1", raw, time.Now())
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[0].Variant != models.VariantThumbnail {
		t.Fatalf("expected thumbnail, got %s", assets[0].Variant)
	}
	if assets[1].Variant != models.VariantLarge {
		t.Fatalf("expected large, got %s", assets[1].Variant)
	}
}

func TestDedupe_OrderStable(t *testing.T) {
	// Two larges for the same photo: the first by sort order wins.
	raw := []provider.MediaRecord{
		mediaRecord("m2", "https://cdn.example.com/img/abc123-l.jpg", intPtr(5), ""),
		mediaRecord("m1", "https://cdn.example.com/img/abc123.jpg", intPtr(1), "Large"),
	}

	assets := Dedupe("W1", raw, time.Now())
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
	if assets[0].SourceURL != "https://cdn.example.com/img/abc123.jpg" {
		t.Fatalf("expected lowest-order variant to win, got %s", assets[0].SourceURL)
	}
}

func TestDedupe_NilOrderSortsLast(t *testing.T) {
	raw := []provider.MediaRecord{
		mediaRecord("m1", "https://cdn.example.com/img/noorder-l.jpg", nil, ""),
		mediaRecord("m2", "https://cdn.example.com/img/first-l.jpg", intPtr(1), ""),
	}

	assets := Dedupe("W1", raw, time.Now())
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[0].PhotoToken != "first" {
		t.Fatalf("expected ordered photo first, got %s", assets[0].PhotoToken)
	}
	if assets[1].PhotoToken != "noorder" {
		t.Fatalf("expected nil-order photo last, got %s", assets[1].PhotoToken)
	}
}

func TestDedupe_FallbackToMediaKey(t *testing.T) {
	raw := []provider.MediaRecord{
		{MediaKey: "MK100-l", ResourceRecordKey: "W1", Order: intPtr(1), ImageSizeDescription: "Large"},
	}

	assets := Dedupe("W1", raw, time.Now())
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
	if assets[0].PhotoToken != "mk100" {
		t.Fatalf("expected token from media key, got %s", assets[0].PhotoToken)
	}
}

func TestDedupe_Empty(t *testing.T) {
	if assets := Dedupe("W1", nil, time.Now()); len(assets) != 0 {
		t.Fatalf("expected no assets, got %d", len(assets))
	}
}
