package textproc

import (
	"regexp"
	"strings"

	"github.com/stampchat/stampchat/pkg/core/types"
)

// Fallback extraction of a stamp record from free prose. Only used when a
// turn produced no structured tool output; explicitly lossy and never
// treated as authoritative.

var (
	nameRe = regexp.MustCompile(`(?i)(?:stamp|issue)\s+(?:called|named|titled)?\s*["“]([^"“”\n]{2,80})["”]`)
	// Quoted title anywhere in prose, e.g. The "Penny Black" is...
	quotedNameRe = regexp.MustCompile(`["“]([^"“”\n]{2,80})["”]`)
	countryRe    = regexp.MustCompile(`(?i)(?:issued|released|printed)\s+(?:by|in)\s+(?:the\s+)?([A-Z][A-Za-z .'-]{1,40}?)(?:\s+in\s+\d{4}|[.,;]|$)`)
	yearRe       = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)
	colorRe      = regexp.MustCompile(`(?i)\b(black|blue|red|green|brown|orange|purple|violet|yellow|carmine|vermilion|ultramarine|sepia|olive|magenta|rose|lilac)\b`)
	denomRe      = regexp.MustCompile(`(?i)\b(\d+(?:[./]\d+)?\s*(?:penny|pence|cent|cents|centimes?|kopecks?|pfennig|shilling|dollar|euro|franc|mark|krone|peso|rupee|yen)|[¼½¾]?d)\b`)
	imageURLRe   = regexp.MustCompile(`https?://\S+\.(?:png|jpe?g|gif|webp)`)
)

// ExtractStamp attempts a best-effort pull of a stamp record from prose.
// Returns false when nothing identifying was found.
func ExtractStamp(text string) (types.StampRecord, bool) {
	var rec types.StampRecord

	if m := nameRe.FindStringSubmatch(text); m != nil {
		rec.Name = strings.TrimSpace(m[1])
	} else if m := quotedNameRe.FindStringSubmatch(text); m != nil {
		rec.Name = strings.TrimSpace(m[1])
	}
	if m := countryRe.FindStringSubmatch(text); m != nil {
		rec.Country = strings.TrimSpace(m[1])
	}
	if m := yearRe.FindString(text); m != "" {
		rec.IssueYear = m
	}
	if m := colorRe.FindString(text); m != "" {
		rec.Color = strings.ToLower(m)
	}
	if m := denomRe.FindString(text); m != "" {
		rec.Denomination = strings.TrimSpace(m)
	}
	if m := imageURLRe.FindString(text); m != "" {
		rec.ImageURL = m
	}

	return rec, rec.Identified()
}
