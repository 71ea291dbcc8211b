package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"d3fend-graphx/internal/resultset"
)

//go:embed catalog.yaml
var embedded []byte

var (
	ErrDomainNotFound = errors.New("domain not found")
	ErrQueryNotFound  = errors.New("query not found")
	ErrNoQueryText    = errors.New("query has no text for backend")
)

// Query is a canned query with parallel text per backend.
type Query struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Group  string `yaml:"group" json:"group,omitempty"`
	SPARQL string `yaml:"sparql" json:"sparql,omitempty"`
	Cypher string `yaml:"cypher" json:"cypher,omitempty"`
}

// Summary is the listing view of a query.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// Text returns the query text for the given backend.
func (q Query) Text(b resultset.Backend) (string, error) {
	var text string
	switch b {
	case resultset.GraphDB:
		text = q.SPARQL
	case resultset.Neo4j:
		text = q.Cypher
	default:
		return "", fmt.Errorf("%w: %q", resultset.ErrUnknownBackend, b)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s on %s", ErrNoQueryText, q.ID, b)
	}
	return text, nil
}

// Domain groups the queries for one knowledge domain.
type Domain struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Queries     []Query `yaml:"queries"`
}

type document struct {
	Domains []Domain `yaml:"domains"`
}

// Catalog is a read-only set of canned queries. It is safe for concurrent use.
type Catalog struct {
	domains []Domain
	byName  map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads a catalog file, or returns the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]int, len(doc.Domains))}
	for _, d := range doc.Domains {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if key == "" {
			return nil, errors.New("catalog domain without a name")
		}
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate catalog domain %q", d.Name)
		}

		seen := make(map[string]struct{}, len(d.Queries))
		for _, q := range d.Queries {
			if q.ID == "" {
				return nil, fmt.Errorf("query without id in domain %q", d.Name)
			}
			if _, dup := seen[q.ID]; dup {
				return nil, fmt.Errorf("duplicate query %q in domain %q", q.ID, d.Name)
			}
			seen[q.ID] = struct{}{}
		}

		d.Name = key
		c.byName[key] = len(c.domains)
		c.domains = append(c.domains, d)
	}
	return c, nil
}

// Domains returns the domain names in catalog order.
func (c *Catalog) Domains() []string {
	names := make([]string, len(c.domains))
	for i, d := range c.domains {
		names[i] = d.Name
	}
	return names
}

func (c *Catalog) domain(name string) (*Domain, error) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, name)
	}
	return &c.domains[i], nil
}

// Queries lists the queries of a domain. Domain names match case-insensitively.
func (c *Catalog) Queries(domain string) ([]Summary, error) {
	d, err := c.domain(domain)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(d.Queries))
	for i, q := range d.Queries {
		out[i] = Summary{ID: q.ID, Name: q.Name, Group: q.Group}
	}
	return out, nil
}

// Query returns one query of a domain.
func (c *Catalog) Query(domain, id string) (Query, error) {
	d, err := c.domain(domain)
	if err != nil {
		return Query{}, err
	}
	for _, q := range d.Queries {
		if q.ID == id {
			return q, nil
		}
	}
	return Query{}, fmt.Errorf("%w: %s/%s", ErrQueryNotFound, d.Name, id)
}
