package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentic-research/fieldmap/api"
)

const anyMappingType = "*"

// specKind records which raw types a template's mapping can hold.
type specKind int

const (
	specAny specKind = iota
	specObject
	specLeaf
)

// Template is a compiled dynamic template.
type Template struct {
	Def api.DynamicTemplate

	mappingType string
	kind        specKind
	match       func(string) bool
	unmatch     func(string) bool
	pathMatch   func(string) bool
	pathUnmatch func(string) bool
}

// Templates is the ordered template list. Order is declaration order and is
// the only precedence rule.
type Templates []*Template

// CompileTemplates validates and compiles template definitions, keeping order.
func CompileTemplates(defs []api.DynamicTemplate) (Templates, error) {
	out := make(Templates, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if seen[def.Name] {
			return nil, &InvalidMappingError{Field: "dynamic_templates." + def.Name, Reason: "duplicate template name"}
		}
		seen[def.Name] = true
		t, err := compileTemplate(def)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func compileTemplate(def api.DynamicTemplate) (*Template, error) {
	field := "dynamic_templates." + def.Name
	invalid := func(format string, args ...any) error {
		return &InvalidMappingError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if def.Match == "" && def.PathMatch == "" && def.MatchMappingType == "" {
		return nil, invalid("template needs match, path_match or match_mapping_type")
	}

	t := &Template{Def: def, mappingType: def.MatchMappingType}
	if t.mappingType != "" && t.mappingType != anyMappingType {
		if _, err := ParseRawType(t.mappingType); err != nil {
			return nil, invalid("%v", err)
		}
	}

	var compile func(string) (func(string) bool, error)
	switch def.MatchPattern {
	case "", "simple":
		compile = func(p string) (func(string) bool, error) {
			return func(s string) bool { return simpleMatch(p, s) }, nil
		}
	case "regex":
		compile = func(p string) (func(string) bool, error) {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, err
			}
			return re.MatchString, nil
		}
	default:
		return nil, invalid("unknown match_pattern %q", def.MatchPattern)
	}

	for _, m := range []struct {
		pattern string
		dst     *func(string) bool
		path    bool
	}{
		{def.Match, &t.match, false},
		{def.Unmatch, &t.unmatch, false},
		{def.PathMatch, &t.pathMatch, true},
		{def.PathUnmatch, &t.pathUnmatch, true},
	} {
		if m.pattern == "" {
			continue
		}
		fn := compileGlob(m.pattern)
		// path patterns are always globs over the dotted path
		if !m.path {
			var err error
			fn, err = compile(m.pattern)
			if err != nil {
				return nil, invalid("pattern %q: %v", m.pattern, err)
			}
		}
		*m.dst = fn
	}

	switch spec := def.Mapping; {
	case spec.Type == typeObject || spec.Type == typeNested || len(spec.Properties) > 0:
		t.kind = specObject
	case spec.Type != "" && !strings.Contains(spec.Type, "{"):
		if spec.Type != typeString {
			if _, err := ParseFieldType(spec.Type); err != nil {
				return nil, invalid("%v", err)
			}
		}
		t.kind = specLeaf
	}
	return t, nil
}

func compileGlob(p string) func(string) bool {
	return func(s string) bool { return simpleMatch(p, s) }
}

// Name is the template's declared name.
func (t *Template) Name() string { return t.Def.Name }

// Matches reports whether the template applies to a field at path whose
// value has the given raw type.
func (t *Template) Matches(path FieldPath, raw RawType) bool {
	name := path.Leaf()
	if t.match != nil && !t.match(name) {
		return false
	}
	if t.unmatch != nil && t.unmatch(name) {
		return false
	}
	if t.pathMatch != nil || t.pathUnmatch != nil {
		full := path.String()
		if t.pathMatch != nil && !t.pathMatch(full) {
			return false
		}
		if t.pathUnmatch != nil && t.pathUnmatch(full) {
			return false
		}
	}
	if t.mappingType != "" && t.mappingType != anyMappingType && RawType(t.mappingType) != raw {
		return false
	}
	switch t.kind {
	case specObject:
		return raw == RawObject
	case specLeaf:
		return raw != RawObject
	}
	return true
}

// Match returns the first template that applies.
func (ts Templates) Match(path FieldPath, raw RawType) (*Template, bool) {
	for _, t := range ts {
		if t.Matches(path, raw) {
			return t, true
		}
	}
	return nil, false
}

// Matching returns every template that applies, in declaration order.
func (ts Templates) Matching(path FieldPath, raw RawType) []*Template {
	var out []*Template
	for _, t := range ts {
		if t.Matches(path, raw) {
			out = append(out, t)
		}
	}
	return out
}

// Instantiate builds the node the template maps a field at path to.
// {name} and {dynamic_type} placeholders are substituted first.
func (t *Template) Instantiate(path FieldPath, raw RawType) (Node, error) {
	r := strings.NewReplacer("{name}", path.Leaf(), "{dynamic_type}", string(raw))
	spec := substitute(t.Def.Mapping, r)
	return NodeFromSpec(path.String(), &spec, raw)
}

func substitute(spec api.FieldSpec, r *strings.Replacer) api.FieldSpec {
	out := spec
	out.Type = r.Replace(spec.Type)
	out.Analyzer = r.Replace(spec.Analyzer)
	out.Index = api.IndexOption(r.Replace(string(spec.Index)))
	if len(spec.CopyTo) > 0 {
		out.CopyTo = make(api.CopyTo, len(spec.CopyTo))
		for i, target := range spec.CopyTo {
			out.CopyTo[i] = r.Replace(target)
		}
	}
	if len(spec.Properties) > 0 {
		out.Properties = make(map[string]*api.FieldSpec, len(spec.Properties))
		for name, child := range spec.Properties {
			key := r.Replace(name)
			if child == nil {
				out.Properties[key] = nil
				continue
			}
			c := substitute(*child, r)
			out.Properties[key] = &c
		}
	}
	return out
}
