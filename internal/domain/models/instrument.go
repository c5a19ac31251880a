package models

import "fmt"

// Instrument is a supported exchange symbol with its display name.
type Instrument struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
}

// Catalog is the fixed set of supported instruments, in configured order.
type Catalog struct {
	list   []Instrument
	bySymb map[string]Instrument
}

func NewCatalog(items []Instrument) (*Catalog, error) {
	c := &Catalog{bySymb: make(map[string]Instrument, len(items))}
	for _, it := range items {
		if it.Symbol == "" {
			return nil, fmt.Errorf("instrument with empty symbol")
		}
		if _, dup := c.bySymb[it.Symbol]; dup {
			return nil, fmt.Errorf("duplicate instrument %s", it.Symbol)
		}
		if it.Name == "" {
			it.Name = it.Symbol
		}
		c.bySymb[it.Symbol] = it
		c.list = append(c.list, it)
	}
	return c, nil
}

// Lookup returns the instrument or ErrUnknownInstrument.
func (c *Catalog) Lookup(symbol string) (Instrument, error) {
	it, ok := c.bySymb[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%s: %w", symbol, ErrUnknownInstrument)
	}
	return it, nil
}

func (c *Catalog) All() []Instrument {
	out := make([]Instrument, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.list))
	for i, it := range c.list {
		out[i] = it.Symbol
	}
	return out
}
