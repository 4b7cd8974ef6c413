// Package watchlist selects the countries refreshed by batch runs.
package watchlist

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/investscope/internal/analysis"
)

// Entry is an explicitly listed country. Name defaults to the catalog name.
type Entry struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Watchlist is the YAML document.
//
//	regions: [Europe]
//	pea_only: true
//	countries:
//	  - code: US
//	exclude: [RU]
//	stocks:
//	  - symbol: MC.PA
//	    country: France
type Watchlist struct {
	Regions   []string            `yaml:"regions,omitempty" json:"regions,omitempty"`
	PEAOnly   bool                `yaml:"pea_only,omitempty" json:"pea_only,omitempty"`
	Countries []Entry             `yaml:"countries,omitempty" json:"countries,omitempty"`
	Exclude   []string            `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Stocks    []analysis.StockRef `yaml:"stocks,omitempty" json:"stocks,omitempty"`
}

// ValidationError 검증 실패
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default covers the whole catalog.
func Default() *Watchlist {
	return &Watchlist{Regions: Regions()}
}

// Load reads a YAML watchlist. Unknown fields are rejected.
func Load(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadOrDefault falls back to Default when path does not exist.
func LoadOrDefault(path string) (*Watchlist, error) {
	w, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return w, err
}

// Parse decodes and validates a YAML watchlist.
func Parse(data []byte) (*Watchlist, error) {
	var w Watchlist
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 오타 필드는 즉시 실패
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}
	if err := Validate(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks codes and regions against the catalog. Explicit countries
// outside the catalog are allowed when they carry a name.
func Validate(w *Watchlist) error {
	known := make(map[string]bool)
	for _, r := range Regions() {
		known[r] = true
	}
	for i, r := range w.Regions {
		if !known[r] {
			return ValidationError{fmt.Sprintf("regions[%d]", i), fmt.Sprintf("unknown region %q", r)}
		}
	}

	for i, e := range w.Countries {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		field := fmt.Sprintf("countries[%d].code", i)
		if len(code) != 2 {
			return ValidationError{field, "must be an ISO 3166-1 alpha-2 code"}
		}
		if _, ok := Lookup(code); !ok && strings.TrimSpace(e.Name) == "" {
			return ValidationError{fmt.Sprintf("countries[%d].name", i), "required for countries outside the catalog"}
		}
	}

	for i, code := range w.Exclude {
		if len(strings.TrimSpace(code)) != 2 {
			return ValidationError{fmt.Sprintf("exclude[%d]", i), "must be an ISO 3166-1 alpha-2 code"}
		}
	}

	for i, st := range w.Stocks {
		if _, err := analysis.NormalizeSymbol(st.Symbol); err != nil {
			return ValidationError{fmt.Sprintf("stocks[%d].symbol", i), "invalid ticker"}
		}
	}

	if len(w.Regions) == 0 && len(w.Countries) == 0 && len(w.Stocks) == 0 {
		return ValidationError{"regions", "at least one region, country or stock is required"}
	}
	return nil
}

// Resolve returns the countries to refresh: explicit entries first, then the
// selected regions in catalog order, without duplicates or exclusions.
func (w *Watchlist) Resolve() []analysis.CountryRef {
	excluded := make(map[string]bool, len(w.Exclude))
	for _, code := range w.Exclude {
		excluded[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	seen := make(map[string]bool)
	var out []analysis.CountryRef

	add := func(code, name string) {
		if excluded[code] || seen[code] {
			return
		}
		seen[code] = true
		out = append(out, analysis.CountryRef{Code: code, Name: name})
	}

	for _, e := range w.Countries {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		name := strings.TrimSpace(e.Name)
		if c, ok := Lookup(code); ok && name == "" {
			name = c.Name
		}
		add(code, name)
	}

	regions := make(map[string]bool, len(w.Regions))
	for _, r := range w.Regions {
		regions[r] = true
	}
	for _, c := range Catalog {
		if regions[c.Region] && (!w.PEAOnly || c.PEA) {
			add(c.Code, c.Name)
		}
	}
	return out
}

// StockRefs returns the explicitly watched stocks with normalized symbols.
func (w *Watchlist) StockRefs() []analysis.StockRef {
	out := make([]analysis.StockRef, 0, len(w.Stocks))
	for _, st := range w.Stocks {
		symbol, err := analysis.NormalizeSymbol(st.Symbol)
		if err != nil {
			continue
		}
		st.Symbol = symbol
		out = append(out, st)
	}
	return out
}

// Hash identifies the resolved selection in logs.
func (w *Watchlist) Hash() string {
	data, _ := json.Marshal(struct {
		Countries []analysis.CountryRef
		Stocks    []analysis.StockRef
	}{w.Resolve(), w.StockRefs()})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
