package models

import (
	"testing"
	"time"
)

func sampleDeal() Deal {
	return Deal{
		Title:         "Anker 65W USB-C Charger",
		Price:         "$25.99",
		OriginalPrice: "$49.99",
		Link:          "https://slickdeals.net/f/12345-anker-65w",
		Image:         "https://static.slickdeals.net/img/12345.jpg",
		Coupon:        "ANKER20",
		Tag:           "#Slickdeals",
		Source:        "slickdeals",
	}
}

func TestFingerprint_Stable(t *testing.T) {
	d := sampleDeal()
	copied := d
	if d.Fingerprint() != copied.Fingerprint() {
		t.Error("fingerprint of a copy differs from the original")
	}
	// Re-computing must be deterministic.
	if d.Fingerprint() != d.Fingerprint() {
		t.Error("fingerprint is not deterministic across calls")
	}
}

func TestFingerprint_ChangesWithRequiredFields(t *testing.T) {
	base := sampleDeal()
	mutations := map[string]func(*Deal){
		"title": func(d *Deal) { d.Title = "Different Title" },
		"price": func(d *Deal) { d.Price = "$26.99" },
		"link":  func(d *Deal) { d.Link = "https://slickdeals.net/f/99999" },
	}
	for name, mutate := range mutations {
		d := base
		mutate(&d)
		if d.Fingerprint() == base.Fingerprint() {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

func TestFingerprint_NoDelimiterCollisions(t *testing.T) {
	// Without delimiters "ab"+"c" and "a"+"bc" would collide.
	a := Deal{Title: "ab", Price: "c", Link: "https://example.com/x"}
	b := Deal{Title: "a", Price: "bc", Link: "https://example.com/x"}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("adjacent-field collision detected; delimiter missing from canonical string")
	}
}

func TestFingerprint_MissingOptionalEqualsEmpty(t *testing.T) {
	withEmpty := sampleDeal()
	withEmpty.OriginalPrice = ""
	withEmpty.Image = ""

	missing := sampleDeal()
	missing.OriginalPrice = ""
	missing.Image = ""

	if withEmpty.Fingerprint() != missing.Fingerprint() {
		t.Error("empty and absent optional fields produced different fingerprints")
	}
}

func TestFingerprint_UnavailableImageEqualsNoImage(t *testing.T) {
	noImage := sampleDeal()
	noImage.Image = ""
	sentinel := sampleDeal()
	sentinel.Image = ImageUnavailable
	if noImage.Fingerprint() != sentinel.Fingerprint() {
		t.Error("image sentinel should fingerprint like an absent image")
	}
}

func TestFingerprint_SourceAgnostic(t *testing.T) {
	a := sampleDeal()
	b := sampleDeal()
	b.Source = "dealnews"
	b.Tag = "#DealNews"
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint must not depend on source or tag")
	}
}

func TestNewSeenRecord(t *testing.T) {
	d := sampleDeal()
	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewSeenRecord(d, sentAt)
	if rec.Fingerprint != d.Fingerprint() {
		t.Error("record fingerprint mismatch")
	}
	if rec.Title != d.Title || rec.Price != d.Price || rec.Link != d.Link {
		t.Error("record did not snapshot display fields")
	}
	if !rec.SentAt.Equal(sentAt) {
		t.Errorf("SentAt = %v, want %v", rec.SentAt, sentAt)
	}
}
