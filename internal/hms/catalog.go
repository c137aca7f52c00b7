package hms

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
)

//go:embed catalog/*.json
var embedded embed.FS

// table is the on-disk layout of one hms_<MODEL>_<lang>.json file.
type table struct {
	HMS    map[string]string `json:"device_hms"`
	Errors map[string]string `json:"device_error"`
}

// Catalog holds localized diagnostic text keyed by device model and language.
// A nil *Catalog is valid and resolves every lookup to Unknown.
type Catalog struct {
	tables map[string]map[string]table
	models []string
}

// modelFallbacks lists sibling models whose catalogs are consulted before
// the rest when the device's own model has no entry for a code.
var modelFallbacks = map[string][]string{
	"X1":     {"X1C"},
	"X1E":    {"X1C"},
	"P1P":    {"P1S"},
	"P1S":    {"P1P"},
	"P2S":    {"P1S"},
	"A1":     {"A1MINI"},
	"A1MINI": {"A1"},
	"H2S":    {"H2D"},
	"H2C":    {"H2D"},
	"H2DPRO": {"H2D"},
}

// Load reads every hms_<MODEL>_<lang>.json file at the root of fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	names, err := fs.Glob(fsys, "hms_*.json")
	if err != nil {
		return nil, fmt.Errorf("list catalog files: %w", err)
	}

	c := &Catalog{tables: make(map[string]map[string]table)}
	for _, name := range names {
		model, lang, ok := parseFileName(name)
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var t table
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		c.add(model, lang, t)
	}
	slices.Sort(c.models)
	return c, nil
}

// LoadDir reads a catalog from a directory on disk.
func LoadDir(dir string) (*Catalog, error) {
	return Load(os.DirFS(dir))
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary. It is a seed of a
// few English X1C and H2D entries; full catalogs are loaded with LoadDir.
func Default() *Catalog {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "catalog")
		if err == nil {
			defaultCatalog, err = Load(sub)
		}
		if err != nil {
			defaultCatalog = &Catalog{tables: make(map[string]map[string]table)}
		}
	})
	return defaultCatalog
}

func (c *Catalog) add(model, lang string, t table) {
	byLang, ok := c.tables[model]
	if !ok {
		byLang = make(map[string]table)
		c.tables[model] = byLang
		c.models = append(c.models, model)
	}
	merged := byLang[lang]
	merged.HMS = mergeEntries(merged.HMS, t.HMS)
	merged.Errors = mergeEntries(merged.Errors, t.Errors)
	byLang[lang] = merged
}

func mergeEntries(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[normalizeCode(k)] = v
	}
	return dst
}

// Models lists the device models present in the catalog.
func (c *Catalog) Models() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.models)
}

// HMSText resolves an AAAA_BBBB_CCCC_DDDD code.
func (c *Catalog) HMSText(code, model, lang string) string {
	return c.lookup(code, model, lang, func(t table) map[string]string { return t.HMS })
}

// ErrorText resolves an XXXX_XXXX print error code.
func (c *Catalog) ErrorText(code, model, lang string) string {
	return c.lookup(code, model, lang, func(t table) map[string]string { return t.Errors })
}

// lookup walks languages in preference order; within each language the
// device's model, then its siblings, then every other model are tried.
func (c *Catalog) lookup(code, model, lang string, entries func(table) map[string]string) string {
	if c == nil || code == "" {
		return Unknown
	}
	key := normalizeCode(code)
	order := c.modelOrder(strings.ToUpper(model))
	for _, l := range languageCandidates(lang) {
		for _, m := range order {
			t, ok := c.tables[m][l]
			if !ok {
				continue
			}
			if text, ok := entries(t)[key]; ok && text != "" {
				return text
			}
		}
	}
	return Unknown
}

func (c *Catalog) modelOrder(model string) []string {
	order := make([]string, 0, len(c.models)+1)
	if model != "" {
		order = append(order, model)
	}
	order = append(order, modelFallbacks[model]...)
	for _, m := range c.models {
		if !slices.Contains(order, m) {
			order = append(order, m)
		}
	}
	return order
}

// languageCandidates expands a locale such as "pt-BR" into
// ["pt_br", "pt", "en"].
func languageCandidates(lang string) []string {
	lang = normalizeLanguage(lang)
	var out []string
	add := func(l string) {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	if lang == "zh" {
		add("zh_cn")
	}
	add(lang)
	if base, _, ok := strings.Cut(lang, "_"); ok {
		add(base)
	}
	add("en")
	return out
}

func normalizeLanguage(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "-", "_")
}

// parseFileName splits hms_<MODEL>_<lang>.json.
func parseFileName(name string) (model, lang string, ok bool) {
	base := strings.TrimSuffix(strings.TrimPrefix(path.Base(name), "hms_"), ".json")
	model, lang, ok = strings.Cut(base, "_")
	if !ok || model == "" || lang == "" {
		return "", "", false
	}
	return strings.ToUpper(model), normalizeLanguage(lang), true
}
