// Package i18n holds the user-facing message catalogs. Catalogs are
// embedded JSON objects mapping keys to text with positional {0}, {1}
// placeholders.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// DefaultLanguage is used when a requested language has no catalog.
const DefaultLanguage = "en"

// supported lists the embedded catalogs. The first entry is the fallback.
var supported = []language.Tag{
	language.English,
	language.MustParse("zh-TW"),
}

var matcher = language.NewMatcher(supported)

// Languages lists the embedded catalog languages, fallback first.
func Languages() []string {
	out := make([]string, len(supported))
	for i, tag := range supported {
		out[i] = tag.String()
	}
	return out
}

// Catalog is an immutable set of messages in one language.
type Catalog struct {
	lang  string
	texts map[string]string
}

// Load returns the catalog closest to lang. Unknown or malformed tags fall
// back to English.
func Load(lang string) (*Catalog, error) {
	_, idx := language.MatchStrings(matcher, lang)
	name := supported[idx].String()

	raw, err := locales.ReadFile("locales/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", name, err)
	}
	var texts map[string]string
	if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("i18n: decode %s: %w", name, err)
	}
	return &Catalog{lang: name, texts: texts}, nil
}

// MustLoad is Load for embedded catalogs known to be valid.
func MustLoad(lang string) *Catalog {
	c, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return c
}

// Lang returns the catalog's language tag.
func (c *Catalog) Lang() string { return c.lang }

// Get returns the text for key, or key itself when missing.
func (c *Catalog) Get(key string) string {
	if s, ok := c.texts[key]; ok {
		return s
	}
	return key
}

// Format returns Get(key) with {i} replaced by args[i].
func (c *Catalog) Format(key string, args ...any) string {
	s := c.Get(key)
	if len(args) == 0 {
		return s
	}
	pairs := make([]string, 0, len(args)*2)
	for i, arg := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(arg))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Active holds the catalog in use and lets a config reload swap it.
type Active struct {
	cur atomic.Pointer[Catalog]
}

// NewActive returns a holder serving c.
func NewActive(c *Catalog) *Active {
	a := &Active{}
	a.cur.Store(c)
	return a
}

// Set switches to the catalog for lang.
func (a *Active) Set(lang string) error {
	c, err := Load(lang)
	if err != nil {
		return err
	}
	a.cur.Store(c)
	return nil
}

// Catalog returns the catalog in use.
func (a *Active) Catalog() *Catalog { return a.cur.Load() }

// Get is shorthand for a.Catalog().Get.
func (a *Active) Get(key string) string { return a.Catalog().Get(key) }

// Format is shorthand for a.Catalog().Format.
func (a *Active) Format(key string, args ...any) string { return a.Catalog().Format(key, args...) }
