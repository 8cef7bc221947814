package goodsparser

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPatternConfig is returned when a pattern library cannot be built
var ErrInvalidPatternConfig = errors.New("invalid pattern configuration")

// identifierShape is the token shape shared by every model-number tier and the name cleaner
const identifierShape = `[A-Z0-9]+(?:-[A-Z0-9]+)*`

var (
	stopTokenRe = regexp.MustCompile(`^` + identifierShape + `$`)
	currencyRe  = regexp.MustCompile(`^[A-Z]{3}$`)
	unitTokenRe = regexp.MustCompile(`^[A-Z]+$`)
)

// LibraryConfig holds the keyword lists the patterns are compiled from
type LibraryConfig struct {
	// Materials are tried in order at each text position
	Materials      []string `yaml:"materials"`
	Stoplist       []string `yaml:"stoplist"`
	Currencies     []string `yaml:"currencies"`
	Units          []string `yaml:"units"`
	QuantityMarker string   `yaml:"quantity_marker"`
}

// DefaultLibraryConfig returns the built-in keyword lists
func DefaultLibraryConfig() LibraryConfig {
	return LibraryConfig{
		Materials: []string{
			"STEEL", "PLASTIC", "WOOD", "WOODEN", "GLASS",
			"ALUMINIUM", "COPPER", "MILD STEEL", "SS", "HOUSEHOLD",
		},
		Stoplist:       []string{"QTY", "PCS", "SET", "SETS", "NOS", "PER", "USD", "CNY"},
		Currencies:     []string{"USD", "CNY", "EUR", "HKD", "JPY"},
		Units:          []string{"PCS", "NOS", "SET"},
		QuantityMarker: "QTY",
	}
}

// LoadLibraryConfig reads a LibraryConfig from a YAML file.
// Lists missing from the file keep their built-in values.
func LoadLibraryConfig(path string) (LibraryConfig, error) {
	cfg := DefaultLibraryConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read pattern file: %w", err)
	}

	var fromFile LibraryConfig
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return cfg, fmt.Errorf("%w: decode %s: %v", ErrInvalidPatternConfig, path, err)
	}

	if fromFile.Materials != nil {
		cfg.Materials = fromFile.Materials
	}
	if fromFile.Stoplist != nil {
		cfg.Stoplist = fromFile.Stoplist
	}
	if fromFile.Currencies != nil {
		cfg.Currencies = fromFile.Currencies
	}
	if fromFile.Units != nil {
		cfg.Units = fromFile.Units
	}
	if fromFile.QuantityMarker != "" {
		cfg.QuantityMarker = fromFile.QuantityMarker
	}

	return cfg, nil
}

// Library is the compiled, read-only set of patterns shared by all extractors
type Library struct {
	config   LibraryConfig
	stoplist map[string]struct{}
	version  string

	identifier    *regexp.Regexp
	parenBlock    *regexp.Regexp
	leadingToken  *regexp.Regexp
	material      *regexp.Regexp
	price         *regexp.Regexp
	capacity      *regexp.Regexp
	unitToken     *regexp.Regexp
	unitAfterQty  *regexp.Regexp
	quantity      *regexp.Regexp
	firstDigits   *regexp.Regexp
	nameTruncate  *regexp.Regexp
	bracketGroup  *regexp.Regexp
	nameLeadToken *regexp.Regexp
}

// NewLibrary validates cfg and compiles every pattern
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	marker := regexp.QuoteMeta(cfg.QuantityMarker)
	units := alternation(cfg.Units)

	lib := &Library{
		config:   cfg,
		stoplist: make(map[string]struct{}, len(cfg.Stoplist)),
		version:  fingerprint(cfg),
	}
	for _, tok := range cfg.Stoplist {
		lib.stoplist[tok] = struct{}{}
	}

	patterns := []struct {
		dst  **regexp.Regexp
		expr string
	}{
		{&lib.identifier, `(?i)` + identifierShape},
		{&lib.parenBlock, `\(([^)]+)\)`},
		{&lib.leadingToken, `(?i)^\s*(` + identifierShape + `)`},
		{&lib.material, `(` + alternation(cfg.Materials) + `)`},
		{&lib.price, `(` + alternation(cfg.Currencies) + `)[\s/:]*([\d.]+)`},
		{&lib.capacity, `(\d+\s*(?:` + units + `)(?:\s*SET)?)`},
		{&lib.unitToken, `(` + units + `)`},
		{&lib.unitAfterQty, marker + `[:\s]*\d[\d,]*[, ]*\s*(` + units + `)`},
		{&lib.quantity, marker + `[:\s]*([\d,]+)`},
		{&lib.firstDigits, `(\d+)`},
		{&lib.nameTruncate, `\(` + marker + `[:\s]`},
		{&lib.bracketGroup, `\([^)]+\)`},
		{&lib.nameLeadToken, `(?i)^` + identifierShape + `\s+`},
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p.expr)
		if err != nil {
			return nil, fmt.Errorf("%w: compile %q: %v", ErrInvalidPatternConfig, p.expr, err)
		}
		*p.dst = re
	}

	return lib, nil
}

// MustNewLibrary is like NewLibrary but panics on invalid configuration
func MustNewLibrary(cfg LibraryConfig) *Library {
	lib, err := NewLibrary(cfg)
	if err != nil {
		panic(err)
	}
	return lib
}

var defaultLibrary = MustNewLibrary(DefaultLibraryConfig())

// DefaultLibrary returns the library compiled from DefaultLibraryConfig
func DefaultLibrary() *Library {
	return defaultLibrary
}

// Validate reports the first malformed entry in the configuration
func (c LibraryConfig) Validate() error {
	if len(c.Materials) == 0 {
		return fmt.Errorf("%w: no material keywords", ErrInvalidPatternConfig)
	}
	for i, m := range c.Materials {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: material keyword %d is empty", ErrInvalidPatternConfig, i)
		}
	}

	for _, tok := range c.Stoplist {
		if !stopTokenRe.MatchString(tok) {
			return fmt.Errorf("%w: stoplist token %q is not an uppercase identifier", ErrInvalidPatternConfig, tok)
		}
	}

	if len(c.Currencies) == 0 {
		return fmt.Errorf("%w: no currency codes", ErrInvalidPatternConfig)
	}
	for _, cur := range c.Currencies {
		if !currencyRe.MatchString(cur) {
			return fmt.Errorf("%w: currency code %q must be three uppercase letters", ErrInvalidPatternConfig, cur)
		}
	}

	if len(c.Units) == 0 {
		return fmt.Errorf("%w: no unit tokens", ErrInvalidPatternConfig)
	}
	for _, u := range c.Units {
		if !unitTokenRe.MatchString(u) {
			return fmt.Errorf("%w: unit token %q must be uppercase letters", ErrInvalidPatternConfig, u)
		}
	}

	if !unitTokenRe.MatchString(c.QuantityMarker) {
		return fmt.Errorf("%w: quantity marker %q must be uppercase letters", ErrInvalidPatternConfig, c.QuantityMarker)
	}

	return nil
}

// IsStopword reports whether an uppercase token may never be a model number
func (l *Library) IsStopword(token string) bool {
	_, ok := l.stoplist[token]
	return ok
}

// Config returns a copy of the configuration the library was built from
func (l *Library) Config() LibraryConfig {
	cfg := l.config
	cfg.Materials = append([]string(nil), l.config.Materials...)
	cfg.Stoplist = append([]string(nil), l.config.Stoplist...)
	cfg.Currencies = append([]string(nil), l.config.Currencies...)
	cfg.Units = append([]string(nil), l.config.Units...)
	return cfg
}

// Version is a stable fingerprint of the configuration
func (l *Library) Version() string {
	return l.version
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

func fingerprint(cfg LibraryConfig) string {
	h := sha256.New()
	for _, list := range [][]string{cfg.Materials, cfg.Stoplist, cfg.Currencies, cfg.Units, {cfg.QuantityMarker}} {
		h.Write([]byte(strings.Join(list, "\x1f")))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
