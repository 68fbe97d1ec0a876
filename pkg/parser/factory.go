package parser

import (
	"fmt"
	"sync"
)

type parserFactory struct {
	parsers map[string]SERPParser
	mu      sync.RWMutex
}

var (
	factory     *parserFactory
	factoryOnce sync.Once
)

// GetParserFactory returns the singleton parser factory instance
func GetParserFactory() ParserFactory {
	factoryOnce.Do(func() {
		factory = &parserFactory{
			parsers: make(map[string]SERPParser),
		}
		// Register default engine parsers
		factory.RegisterParser("google", NewGoogleParser())
		factory.RegisterParser("bing", NewBingParser())
	})
	return factory
}

func (f *parserFactory) GetParser(engine string) SERPParser {
	f.mu.RLock()
	defer f.mu.RUnlock()

	parser, exists := f.parsers[engine]
	if !exists {
		return nil
	}
	return parser
}

func (f *parserFactory) RegisterParser(engine string, parser SERPParser) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if parser == nil {
		panic(fmt.Sprintf("cannot register nil parser for engine %s", engine))
	}

	f.parsers[engine] = parser
}
