package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ImageUnavailable marks a deal whose source listed no usable image.
const ImageUnavailable = "unavailable"

// Deal is a candidate listing scraped from one source. It carries no
// identity of its own until Fingerprint is called.
type Deal struct {
	Title         string `validate:"required"`
	Price         string `validate:"required"`
	OriginalPrice string // only meaningful when greater than Price
	Link          string `validate:"required,url"`
	Image         string // URL or ImageUnavailable
	Coupon        string
	CouponInfo    string
	Tag           string // e.g. "#Slickdeals"
	Source        string // collector instance name, e.g. "slickdeals"
}

// Fingerprint returns a stable content digest for the deal. The canonical
// string joins title, price, link, image and original price in that fixed
// order with "|", so an absent optional field hashes identically to an
// empty one and field reordering in memory cannot change the digest.
func (d Deal) Fingerprint() string {
	image := d.Image
	if image == ImageUnavailable {
		image = ""
	}
	canonical := strings.Join([]string{d.Title, d.Price, d.Link, image, d.OriginalPrice}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// SeenRecord is the persisted marker for a delivered deal. Created exactly
// once per successful delivery and removed by the retention sweep.
type SeenRecord struct {
	Fingerprint   string
	Title         string
	Price         string
	OriginalPrice string
	Link          string
	Image         string
	Tag           string
	Coupon        string
	SentAt        time.Time
}

// NewSeenRecord snapshots a delivered deal's display fields.
func NewSeenRecord(d Deal, sentAt time.Time) SeenRecord {
	return SeenRecord{
		Fingerprint:   d.Fingerprint(),
		Title:         d.Title,
		Price:         d.Price,
		OriginalPrice: d.OriginalPrice,
		Link:          d.Link,
		Image:         d.Image,
		Tag:           d.Tag,
		Coupon:        d.Coupon,
		SentAt:        sentAt,
	}
}
