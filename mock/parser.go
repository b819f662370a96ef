package mock

import "github.com/fwojciec/webcrawl"

var _ webcrawl.Parser = (*Parser)(nil)

// Parser is a mock implementation of webcrawl.Parser.
type Parser struct {
	ParseFn func(body []byte, baseURL string, terms []string) (*webcrawl.ParseResult, error)
}

func (p *Parser) Parse(body []byte, baseURL string, terms []string) (*webcrawl.ParseResult, error) {
	return p.ParseFn(body, baseURL, terms)
}
