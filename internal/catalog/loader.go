package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
)

// Catalog is the loaded, validated view of the catalog tree. It is built
// once per process via Load and cached; callers needing a fresh read (tests,
// or after an author edits the tree) call Invalidate then Load again.
type Catalog struct {
	root string

	mu           sync.RWMutex
	datasets     map[string]Dataset
	tables       map[tableKey]*Table
	glossary     []GlossaryEntry
	routingRules *RoutingRules
	examples     []FewShotExample
	exchanges    *ExchangeRegistry
}

type tableKey struct {
	dataset string
	table   string
}

var (
	processCacheMu sync.Mutex
	processCache   = map[string]*Catalog{}
)

// Load reads, parses, and validates the catalog tree rooted at root. The
// result is cached per process per root; a second Load for the same root
// returns the cached value without touching disk.
func Load(root string) (*Catalog, error) {
	processCacheMu.Lock()
	defer processCacheMu.Unlock()

	if c, ok := processCache[root]; ok {
		return c, nil
	}

	c, err := load(root)
	if err != nil {
		return nil, err
	}
	processCache[root] = c
	return c, nil
}

// Invalidate clears the process cache for root, forcing the next Load to
// re-read the tree from disk. Intended for tests.
func Invalidate(root string) {
	processCacheMu.Lock()
	defer processCacheMu.Unlock()
	delete(processCache, root)
}

func load(root string) (*Catalog, error) {
	c := &Catalog{
		root:     root,
		datasets: map[string]Dataset{},
		tables:   map[tableKey]*Table{},
	}

	for _, layer := range []Layer{LayerGold, LayerSilver} {
		if err := c.loadLayer(layer); err != nil {
			return nil, err
		}
	}

	if err := c.loadRouting(); err != nil {
		return nil, err
	}
	if err := c.loadGlossary(); err != nil {
		return nil, err
	}
	if err := c.loadExamples(); err != nil {
		return nil, err
	}
	if err := c.loadExchanges(); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// loadLayer scans {root}/{layer}/*.yaml, treating a leading underscore as the
// dataset-level descriptor file rather than a table.
func (c *Catalog) loadLayer(layer Layer) error {
	dir := filepath.Join(c.root, string(layer))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &errs.CatalogError{Source: dir, Err: err}
	}

	datasetName := string(layer)
	var dsBusinessContext string

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		if strings.HasPrefix(e.Name(), "_") {
			var ds Dataset
			if err := readYAML(filepath.Join(dir, e.Name()), &ds); err != nil {
				return err
			}
			if ds.Name != "" {
				datasetName = ds.Name
			}
			ds.Layer = layer
			dsBusinessContext = ds.BusinessContext
			c.datasets[datasetName] = ds
		}
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		var t Table
		path := filepath.Join(dir, e.Name())
		if err := readYAML(path, &t); err != nil {
			return err
		}
		if t.Dataset == "" {
			t.Dataset = datasetName
		}
		t.Layer = layer
		t.DatasetContext = dsBusinessContext
		key := tableKey{dataset: t.Dataset, table: t.Name}
		if _, exists := c.tables[key]; exists {
			return &errs.CatalogError{Source: path, Err: fmt.Errorf("duplicate table %s.%s", t.Dataset, t.Name)}
		}
		c.tables[key] = &t
	}

	if _, ok := c.datasets[datasetName]; !ok {
		c.datasets[datasetName] = Dataset{Name: datasetName, Layer: layer}
	}

	return nil
}

func (c *Catalog) loadRouting() error {
	path := filepath.Join(c.root, "_routing.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.routingRules = &RoutingRules{}
		return nil
	}
	var rr RoutingRules
	if err := readYAML(path, &rr); err != nil {
		return err
	}
	c.routingRules = &rr
	return nil
}

func (c *Catalog) loadGlossary() error {
	path := filepath.Join(c.root, "glossary.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	var doc struct {
		Entries []GlossaryEntry `yaml:"entries"`
	}
	if err := readYAML(path, &doc); err != nil {
		return err
	}
	c.glossary = doc.Entries
	return nil
}

func (c *Catalog) loadExamples() error {
	dir := filepath.Join(c.root, "examples")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &errs.CatalogError{Source: dir, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		var doc struct {
			Examples []FewShotExample `yaml:"examples"`
		}
		if err := readYAML(filepath.Join(dir, e.Name()), &doc); err != nil {
			return err
		}
		c.examples = append(c.examples, doc.Examples...)
	}
	return nil
}

func (c *Catalog) loadExchanges() error {
	path := filepath.Join(c.root, "_exchanges.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.exchanges = &ExchangeRegistry{}
		return nil
	}
	var reg ExchangeRegistry
	if err := readYAML(path, &reg); err != nil {
		return err
	}
	c.exchanges = &reg
	return nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &errs.CatalogError{Source: path, Err: err}
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(false)
	if err := dec.Decode(out); err != nil {
		return &errs.CatalogError{Source: path, Err: err}
	}
	return nil
}

// LoadTable returns the full table entity for (dataset, table), including
// dataset-level context. Returns an error result rather than panicking when
// the table is absent from the catalog.
func (c *Catalog) LoadTable(dataset, table string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[tableKey{dataset: dataset, table: table}]
	if !ok {
		return nil, &errs.CatalogError{
			Source: fmt.Sprintf("%s.%s", dataset, table),
			Err:    fmt.Errorf("table not found in catalog"),
		}
	}
	return t, nil
}

// AllTables returns every table in the catalog, regardless of dataset.
func (c *Catalog) AllTables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	return out
}

// LoadRoutingRules returns the process-cached routing document.
func (c *Catalog) LoadRoutingRules() *RoutingRules {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.routingRules
}

// Glossary returns every glossary entry.
func (c *Catalog) Glossary() []GlossaryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.glossary
}

// Examples returns every few-shot example.
func (c *Catalog) Examples() []FewShotExample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.examples
}

// ResolveExchange looks up an exchange code or alias (case-insensitive) and
// returns its dataset pair. Idempotent: repeated calls for the same text
// yield identical results.
func (c *Catalog) ResolveExchange(text string) (gold, silver string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	for _, r := range c.exchanges.Routes {
		if strings.ToLower(r.Code) == needle {
			return r.GoldDataset, r.SilverDataset, true
		}
		for _, a := range r.Aliases {
			if strings.ToLower(a) == needle {
				return r.GoldDataset, r.SilverDataset, true
			}
		}
	}
	return "", "", false
}
