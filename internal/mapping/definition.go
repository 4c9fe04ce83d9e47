package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agentic-research/fieldmap/api"
	"gopkg.in/yaml.v3"
)

var mappingKeys = map[string]bool{
	"dynamic":           true,
	"date_detection":    true,
	"dynamic_templates": true,
	"properties":        true,
}

// ParseDefinition decodes a mapping definition from JSON or YAML. A
// definition wrapped in a single type name ({"doc": {...}}) or in
// {"mappings": {...}} is unwrapped.
func ParseDefinition(data []byte, isYAML bool) (*api.Mapping, error) {
	if isYAML {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml mapping: %w", err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convert yaml mapping: %w", err)
		}
		data = b
	}

	data, err := unwrapDefinition(data)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var m api.Mapping
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	return &m, nil
}

func unwrapDefinition(data []byte) ([]byte, error) {
	for {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(data, &top); err != nil {
			return nil, fmt.Errorf("parse mapping: %w", err)
		}
		if len(top) != 1 {
			return data, nil
		}
		var inner json.RawMessage
		for k, v := range top {
			if mappingKeys[k] {
				return data, nil
			}
			inner = v
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(inner, &probe); err != nil {
			return data, nil
		}
		data = inner
	}
}

// Compile turns a definition into the first snapshot of a canonical mapping.
func Compile(def *api.Mapping) (*Snapshot, error) {
	if def == nil {
		def = &api.Mapping{}
	}
	root := NewObject()
	d, err := dynamicFromAPI(def.Dynamic)
	if err != nil {
		return nil, err
	}
	root.Dynamic = d

	for _, name := range sortedNames(def.Properties) {
		n, err := NodeFromSpec(name, def.Properties[name], "")
		if err != nil {
			return nil, err
		}
		root = root.With(name, n)
	}

	templates, err := CompileTemplates(def.DynamicTemplates)
	if err != nil {
		return nil, err
	}

	dateDetection := true
	if def.DateDetection != nil {
		dateDetection = *def.DateDetection
	}
	return &Snapshot{
		Root:          root,
		Templates:     templates,
		DateDetection: dateDetection,
	}, nil
}

// NodeFromSpec builds a node from a field spec. raw is the raw type of the
// value that triggered the build, or empty for explicit properties; it
// decides the type when the spec leaves it out.
func NodeFromSpec(name string, spec *api.FieldSpec, raw RawType) (Node, error) {
	if spec == nil {
		spec = &api.FieldSpec{}
	}
	kind := spec.Type
	if kind == "" {
		switch {
		case len(spec.Properties) > 0 || raw == RawObject || raw == "":
			kind = typeObject
		default:
			t, _ := DefaultType(raw)
			kind = string(t)
		}
	}

	if kind == typeObject || kind == typeNested {
		obj := NewObject()
		obj.Nested = kind == typeNested
		d, err := dynamicFromAPI(spec.Dynamic)
		if err != nil {
			return nil, &InvalidMappingError{Field: name, Reason: err.Error()}
		}
		obj.Dynamic = d
		if len(spec.CopyTo) > 0 {
			return nil, &InvalidMappingError{Field: name, Reason: "copy_to is not supported on objects"}
		}
		for _, child := range sortedNames(spec.Properties) {
			n, err := NodeFromSpec(name+"."+child, spec.Properties[child], "")
			if err != nil {
				return nil, err
			}
			obj = obj.With(child, n)
		}
		return obj, nil
	}

	if len(spec.Properties) > 0 {
		return nil, &InvalidMappingError{Field: name, Reason: fmt.Sprintf("type %q cannot have properties", kind)}
	}

	leaf := &Leaf{Options: Options{Index: true, Analyzer: spec.Analyzer, Store: spec.Store}}
	switch spec.Index {
	case api.IndexDefault, api.IndexTrue, api.IndexAnalyzed, api.IndexNotAnalyzed:
	case api.IndexFalse, api.IndexNo:
		leaf.Options.Index = false
	default:
		return nil, &InvalidMappingError{Field: name, Reason: fmt.Sprintf("invalid index option %q", spec.Index)}
	}

	if kind == typeString {
		leaf.Type = TypeText
		if spec.Index == api.IndexNotAnalyzed {
			leaf.Type = TypeKeyword
		}
	} else {
		t, err := ParseFieldType(kind)
		if err != nil {
			return nil, &InvalidMappingError{Field: name, Reason: err.Error()}
		}
		leaf.Type = t
	}

	for _, target := range spec.CopyTo {
		p, err := ParsePath(target)
		if err != nil {
			return nil, &InvalidMappingError{Field: name, Reason: "copy_to: " + err.Error()}
		}
		leaf.CopyTo = append(leaf.CopyTo, p)
	}
	return leaf, nil
}

func dynamicFromAPI(d api.Dynamic) (Dynamic, error) {
	switch d {
	case api.DynamicInherit:
		return DynamicInherit, nil
	case api.DynamicTrue:
		return DynamicTrue, nil
	case api.DynamicFalse:
		return DynamicFalse, nil
	case api.DynamicStrict:
		return DynamicStrict, nil
	}
	return DynamicInherit, fmt.Errorf("invalid dynamic setting %q", d)
}

func dynamicToAPI(d Dynamic) api.Dynamic {
	switch d {
	case DynamicTrue:
		return api.DynamicTrue
	case DynamicFalse:
		return api.DynamicFalse
	case DynamicStrict:
		return api.DynamicStrict
	}
	return api.DynamicInherit
}

// SpecFromNode renders a node back into its wire form.
func SpecFromNode(n Node) *api.FieldSpec {
	switch x := n.(type) {
	case *Object:
		spec := &api.FieldSpec{Type: x.Describe(), Dynamic: dynamicToAPI(x.Dynamic)}
		if x.Len() > 0 {
			spec.Properties = make(map[string]*api.FieldSpec, x.Len())
			for _, name := range x.names {
				spec.Properties[name] = SpecFromNode(x.children[name])
			}
		}
		return spec
	case *Leaf:
		spec := &api.FieldSpec{
			Type:     string(x.Type),
			Analyzer: x.Options.Analyzer,
			Store:    x.Options.Store,
		}
		if !x.Options.Index {
			spec.Index = api.IndexFalse
		}
		for _, p := range x.CopyTo {
			spec.CopyTo = append(spec.CopyTo, p.String())
		}
		return spec
	}
	return nil
}

func sortedNames(props map[string]*api.FieldSpec) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
