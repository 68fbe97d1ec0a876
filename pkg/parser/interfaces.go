package parser

// SERPParser decodes one engine's raw live-SERP payload into a typed page.
// Parsing is pure: no network, no retained references into the payload.
type SERPParser interface {
	Parse(payload []byte) (*SERPPage, error)
	Engine() string
}

// ParserFactory hands out the parser registered for an engine.
type ParserFactory interface {
	GetParser(engine string) SERPParser
	RegisterParser(engine string, parser SERPParser)
}
