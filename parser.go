package webcrawl

// ParseResult holds what was extracted from one HTML document.
type ParseResult struct {
	// Links are normalized absolute http(s) URLs in document order,
	// without duplicates.
	Links []string

	// Matches maps each search term to its occurrence count in the
	// visible text. Terms with no occurrences are present with zero.
	Matches map[string]int

	Title       string
	Description string
}

// MatchCount returns the sum of all term occurrences.
func (r *ParseResult) MatchCount() int {
	var n int
	for _, c := range r.Matches {
		n += c
	}
	return n
}

// Parser extracts links and search-term matches from HTML.
type Parser interface {
	// Parse never fails on malformed markup; it returns EPARSE only when
	// the body cannot be read as a document at all.
	Parse(body []byte, baseURL string, terms []string) (*ParseResult, error)
}
