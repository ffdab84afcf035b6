package storefinder

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"decor-ai-be/internal/entity"
)

// MaxStores is how many stores are kept per furniture item.
const MaxStores = 3

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

var ErrMalformedURL = errors.New("malformed store url")

// Candidate is a URL found either in free text or in a grounding citation.
type Candidate struct {
	Url      string
	Location string // place title from a maps citation
}

// ExtractURLs returns URL-shaped tokens in text, in order of appearance.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Collect unions text matches (first) and citations (second), drops exact
// duplicates keeping the first occurrence, and keeps the first limit unique
// candidates in discovery order. Malformed URLs inside that window are
// skipped, not replaced, so fewer than limit stores may come back. skipped is
// called for every malformed candidate and may be nil.
func Collect(text string, citations []Candidate, limit int, skipped func(raw string, err error)) []entity.Store {
	candidates := make([]Candidate, 0, len(citations)+4)
	for _, u := range ExtractURLs(text) {
		candidates = append(candidates, Candidate{Url: u})
	}
	candidates = append(candidates, citations...)

	seen := make(map[string]struct{}, len(candidates))
	unique := make([]Candidate, 0, limit)
	for _, c := range candidates {
		if len(unique) >= limit {
			break
		}
		if _, dup := seen[c.Url]; dup {
			continue
		}
		seen[c.Url] = struct{}{}
		unique = append(unique, c)
	}

	stores := make([]entity.Store, 0, len(unique))
	for _, c := range unique {
		name, err := StoreName(c.Url)
		if err != nil {
			if skipped != nil {
				skipped(c.Url, err)
			}
			continue
		}
		stores = append(stores, entity.Store{Name: name, Url: c.Url, Location: c.Location})
	}
	return stores
}

// StoreName derives a display name from the host's first label:
// https://www.ikea.com/item -> "Ikea", https://shop.wayfair.com/x -> "Shop".
func StoreName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Join(ErrMalformedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrMalformedURL
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return "", ErrMalformedURL
	}

	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:], nil
}
