package builder

import (
	"strings"

	"d3fend-graphx/internal/graph"
	"d3fend-graphx/internal/resultset"
)

const (
	ChildOfRelation  = "CHILD_OF"
	CountersRelation = "COUNTERS"

	DefaultNodeColor   = "#58a6ff"
	DefaultParentColor = "#ffa657"
	DefenseColor       = "#3fb950"
	AttackColor        = "#f85149"
	TacticColor        = "#d2a8ff"
)

// Config carries the typing and colouring hints applied while building.
type Config struct {
	// NodeColor colours relationship sources and plain entities without a known framework.
	NodeColor string
	// ParentColor colours relationship targets without a known framework.
	ParentColor string
	// RelationLabel labels relationship edges whose row has no relType.
	RelationLabel string
	// CounterLabel labels defense -> attack edges.
	CounterLabel string
	// FrameworkColors maps canonical framework tags (see CanonicalFramework) to colours.
	FrameworkColors map[string]string
	DefenseColor    string
	AttackColor     string
	TacticColor     string
}

// DefaultConfig returns the palette used by the explorer UI.
func DefaultConfig() Config {
	return Config{
		NodeColor:     DefaultNodeColor,
		ParentColor:   DefaultParentColor,
		RelationLabel: ChildOfRelation,
		CounterLabel:  CountersRelation,
		FrameworkColors: map[string]string{
			"CAPEC":  "#8957e5",
			"CWE":    "#f85149",
			"ATTACK": "#58a6ff",
			"ATLAS":  "#79c0ff",
			"D3FEND": "#3fb950",
		},
		DefenseColor: DefenseColor,
		AttackColor:  AttackColor,
		TacticColor:  TacticColor,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NodeColor == "" {
		c.NodeColor = d.NodeColor
	}
	if c.ParentColor == "" {
		c.ParentColor = d.ParentColor
	}
	if c.RelationLabel == "" {
		c.RelationLabel = d.RelationLabel
	}
	if c.CounterLabel == "" {
		c.CounterLabel = d.CounterLabel
	}
	if c.FrameworkColors == nil {
		c.FrameworkColors = d.FrameworkColors
	}
	if c.DefenseColor == "" {
		c.DefenseColor = d.DefenseColor
	}
	if c.AttackColor == "" {
		c.AttackColor = d.AttackColor
	}
	if c.TacticColor == "" {
		c.TacticColor = d.TacticColor
	}
	return c
}

// Build constructs a deduplicated graph from normalised rows. Rows that match
// no known column pattern contribute nothing and are recorded as diagnostics.
func Build(rows []resultset.Row, cfg Config) *graph.Graph {
	s := &state{g: graph.New(), cfg: cfg.withDefaults()}

	for i, row := range rows {
		matched := false
		for _, p := range patterns {
			if p.fallback && matched {
				continue
			}
			if !p.match(row) {
				continue
			}
			matched = true
			p.apply(s, i, row)
		}
		if !matched {
			s.g.Diagnose(i, "row matched no known column pattern")
		}
	}

	return s.g
}

// CanonicalFramework normalises a framework tag so "ATT&CK", "att&ck" and
// "ATTACK" compare equal. The ampersand stands for the "A" of ATTACK.
func CanonicalFramework(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("&", "A", " ", "", "-", "").Replace(s)
}

// surrogateID turns a display label into an id by collapsing whitespace runs.
func surrogateID(prefix, label string) string {
	collapsed := strings.Join(strings.Fields(label), "_")
	if collapsed == "" {
		return ""
	}
	return prefix + collapsed
}

type state struct {
	g   *graph.Graph
	cfg Config
}

// frameworkStyle resolves a framework tag to its kind, canonical name and colour.
func (s *state) frameworkStyle(tag, fallback string) (graph.Kind, string, string) {
	fw := CanonicalFramework(tag)
	if color, ok := s.cfg.FrameworkColors[fw]; ok {
		return graph.KindFramework, fw, color
	}
	return graph.KindUnknown, "", fallback
}
