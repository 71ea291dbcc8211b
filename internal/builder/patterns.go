package builder

import (
	"strings"

	"d3fend-graphx/internal/graph"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/shortid"
)

// pattern is one recognised column shape. Patterns run in order; a fallback
// pattern only runs when no earlier pattern matched the row.
type pattern struct {
	name     string
	fallback bool
	match    func(resultset.Row) bool
	apply    func(*state, int, resultset.Row)
}

// New column shapes are added here as new arms.
var patterns = []pattern{
	{name: "relationship", match: isRelationship, apply: (*state).relationship},
	{name: "defense-attack", match: isDefenseAttack, apply: (*state).defenseAttack},
	{name: "framework-overview", fallback: true, match: isFrameworkOverview, apply: (*state).frameworkOverview},
	{name: "entity", fallback: true, match: isEntity, apply: (*state).entity},
}

func hasAny(r resultset.Row, cols ...string) bool {
	return r.First(cols...) != ""
}

func isRelationship(r resultset.Row) bool {
	return hasAny(r, "sourceId", "sourceName", "targetId", "targetName")
}

func isDefenseAttack(r resultset.Row) bool {
	return hasAny(r, "defensiveLabel", "techniqueLabel", "attackLabel", "tacticLabel")
}

// overviewColumns maps "<prefix>ID" columns to their framework.
var overviewColumns = []struct{ prefix, framework string }{
	{"cwe", "CWE"},
	{"capec", "CAPEC"},
	{"attack", "ATTACK"},
	{"atlas", "ATLAS"},
	{"d3f", "D3FEND"},
}

func isFrameworkOverview(r resultset.Row) bool {
	for _, c := range overviewColumns {
		if r.Has(c.prefix + "ID") {
			return true
		}
	}
	return false
}

func isEntity(r resultset.Row) bool {
	return hasAny(r, "id", "name", "label")
}

// relationship handles sourceId/sourceName -> targetId/targetName rows.
func (s *state) relationship(i int, r resultset.Row) {
	src, srcOK := s.endpoint(i, r, "source", s.cfg.NodeColor)
	if !hasAny(r, "targetId", "targetName") {
		return
	}
	tgt, tgtOK := s.endpoint(i, r, "target", s.cfg.ParentColor)
	if !srcOK || !tgtOK {
		s.g.Diagnose(i, "edge dropped: endpoint not resolvable")
		return
	}

	rel := r.Get("relType")
	if rel == "" {
		rel = s.cfg.RelationLabel
	}
	if _, err := s.g.AddEdge(src, tgt, rel); err != nil {
		s.g.Diagnose(i, "edge dropped: %v", err)
	}
}

// endpoint resolves one side of a relationship row to a node id, creating the
// node when the row carries a name for it.
func (s *state) endpoint(i int, r resultset.Row, side, fallbackColor string) (string, bool) {
	name := r.Get(side + "Name")
	id := shortid.Shorten(strings.TrimSpace(r.Get(side + "Id")))
	if id == "" {
		id = surrogateID("", name)
	}
	if id == "" {
		return "", false
	}
	if s.g.HasNode(id) {
		return id, true
	}
	if name == "" {
		s.g.Diagnose(i, "%s node %q skipped: no name", side, id)
		return "", false
	}

	kind, fw, color := s.frameworkStyle(r.Get(side+"Type"), fallbackColor)
	s.g.AddNode(graph.Node{
		ID:          id,
		Label:       name,
		Description: r.Get(side + "Desc"),
		Kind:        kind,
		Framework:   fw,
		Color:       color,
	})
	return id, true
}

// defenseAttack handles the label-only D3FEND rows. Labels are the identity
// here, so two distinct techniques sharing a label collapse into one node.
func (s *state) defenseAttack(i int, r resultset.Row) {
	var source, attack string

	if label := r.First("defensiveLabel", "techniqueLabel"); label != "" {
		source = s.labelNode("def_", label, r.First("definition", "defensiveDefinition"), graph.KindDefensive, "D3FEND", s.cfg.DefenseColor)
	}
	if label := r.Get("attackLabel"); label != "" {
		attack = s.labelNode("atk_", label, "", graph.KindAttack, "ATTACK", s.cfg.AttackColor)
	}
	if label := r.Get("tacticLabel"); label != "" {
		tactic := s.labelNode("tac_", label, "", graph.KindTactic, "D3FEND", s.cfg.TacticColor)
		if source == "" {
			source = tactic
		}
	}

	if source != "" && attack != "" {
		if _, err := s.g.AddEdge(source, attack, s.cfg.CounterLabel); err != nil {
			s.g.Diagnose(i, "edge dropped: %v", err)
		}
	}
}

func (s *state) labelNode(prefix, label, desc string, kind graph.Kind, framework, color string) string {
	id := surrogateID(prefix, label)
	if id == "" {
		return ""
	}
	s.g.AddNode(graph.Node{
		ID:          id,
		Label:       label,
		Description: desc,
		Kind:        kind,
		Framework:   framework,
		Color:       color,
	})
	return id
}

// frameworkOverview handles "<fw>ID"/"<fw>Label" listing rows such as cweID/cweLabel.
func (s *state) frameworkOverview(i int, r resultset.Row) {
	for _, c := range overviewColumns {
		raw := strings.TrimSpace(r.Get(c.prefix + "ID"))
		if raw == "" {
			continue
		}
		id := shortid.Shorten(raw)
		kind, fw, color := s.frameworkStyle(c.framework, s.cfg.NodeColor)
		s.g.AddNode(graph.Node{
			ID:          id,
			Label:       r.First(c.prefix+"Label", c.prefix+"Name"),
			Description: r.First("description", "definition"),
			Kind:        kind,
			Framework:   fw,
			Color:       color,
		})
	}
}

// entity handles plain id/name/label rows, optionally tagged with a framework.
func (s *state) entity(i int, r resultset.Row) {
	label := r.First("name", "label")
	id := shortid.Shorten(strings.TrimSpace(r.Get("id")))
	if id == "" {
		id = surrogateID("", label)
	}
	if id == "" {
		s.g.Diagnose(i, "entity row has no usable id")
		return
	}

	kind, fw, color := s.frameworkStyle(r.Get("framework"), s.cfg.NodeColor)
	s.g.AddNode(graph.Node{
		ID:          id,
		Label:       label,
		Description: r.First("description", "definition"),
		Kind:        kind,
		Framework:   fw,
		Color:       color,
	})
}
