package textproc

import (
	"regexp"
	"strings"
)

// substitution is one ordered cleanup rule applied to model prose.
type substitution struct {
	pattern *regexp.Regexp
	replace string
}

// cleanRules strips internal technical references the model sometimes leaks
// into prose. Order matters: citation markers first, then URLs, then file
// and catalog jargon, then whitespace normalization. Every rule maps cleaned
// text to itself so the full pass is idempotent.
var cleanRules = []substitution{
	// Knowledge-base citation markers, e.g. 【12:3†catalog.json】.
	{regexp.MustCompile(`【[^】]*】`), ""},
	// Bracketed source tags like [source: stamps_kb] or [doc 4].
	{regexp.MustCompile(`\[(?:source|doc|file)[^\]]*\]`), ""},
	// Internal object-storage URLs.
	{regexp.MustCompile(`https?://[a-z0-9.-]*(?:blob\.core\.windows\.net|storage\.googleapis\.com|s3[.-][a-z0-9-]*\.amazonaws\.com)\S*`), ""},
	// Dataset filenames.
	{regexp.MustCompile(`\b[\w-]+\.(?:json|csv|jsonl|txt)\b`), "the catalog"},
	// Catalog-internal jargon.
	{regexp.MustCompile(`(?i)\bvector store\b`), "knowledge base"},
	{regexp.MustCompile(`(?i)\bfile[_ ]search\b`), "catalog lookup"},
	// Collapse whitespace runs left by removals.
	{regexp.MustCompile(`[ \t]{2,}`), " "},
	{regexp.MustCompile(` +([.,;:!?])`), "$1"},
}

// Clean strips internal technical tokens from model prose. Idempotent:
// Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	out := text
	for _, rule := range cleanRules {
		out = rule.pattern.ReplaceAllString(out, rule.replace)
	}
	return strings.TrimSpace(out)
}
