package api

import (
	"encoding/json"
	"fmt"
)

// Mapping is the user-facing definition of an index mapping.
// It is what users submit and what the engine exports after merges.
type Mapping struct {
	// Dynamic controls how unmapped fields at the root are handled.
	Dynamic Dynamic `json:"dynamic,omitempty"`
	// DateDetection enables detecting date-shaped strings (default true).
	DateDetection *bool `json:"date_detection,omitempty"`
	// DynamicTemplates are evaluated in declaration order, first match wins.
	DynamicTemplates []DynamicTemplate `json:"dynamic_templates,omitempty"`
	// Properties are the explicitly mapped root fields.
	Properties map[string]*FieldSpec `json:"properties,omitempty"`
}

// FieldSpec describes a single field: either a leaf (text, keyword, long, ...)
// or an object carrying its own properties.
type FieldSpec struct {
	Type       string                `json:"type,omitempty"`
	Index      IndexOption           `json:"index,omitempty"`
	Analyzer   string                `json:"analyzer,omitempty"`
	Store      bool                  `json:"store,omitempty"`
	CopyTo     CopyTo                `json:"copy_to,omitempty"`
	Dynamic    Dynamic               `json:"dynamic,omitempty"`
	Properties map[string]*FieldSpec `json:"properties,omitempty"`
}

// DynamicTemplate assigns a mapping to previously unseen fields whose name
// (and optionally raw JSON type) matches.
//
// On the wire a template is a single-key object wrapping the body:
//
//	{"template_raw": {"match": "*_raw", "mapping": {"type": "keyword"}}}
type DynamicTemplate struct {
	Name             string    `json:"-"`
	Match            string    `json:"match,omitempty"`
	Unmatch          string    `json:"unmatch,omitempty"`
	PathMatch        string    `json:"path_match,omitempty"`
	PathUnmatch      string    `json:"path_unmatch,omitempty"`
	MatchMappingType string    `json:"match_mapping_type,omitempty"`
	MatchPattern     string    `json:"match_pattern,omitempty"`
	Mapping          FieldSpec `json:"mapping"`
}

type templateBody DynamicTemplate

// UnmarshalJSON decodes the {name: body} wrapper.
func (t *DynamicTemplate) UnmarshalJSON(b []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(b, &wrapper); err != nil {
		return err
	}
	if len(wrapper) != 1 {
		return fmt.Errorf("dynamic template must have exactly one name, got %d", len(wrapper))
	}
	for name, raw := range wrapper {
		var body templateBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return fmt.Errorf("dynamic template %q: %w", name, err)
		}
		*t = DynamicTemplate(body)
		t.Name = name
	}
	return nil
}

// MarshalJSON encodes the template back into its {name: body} wrapper.
func (t DynamicTemplate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]templateBody{t.Name: templateBody(t)})
}

// CopyTo is a list of dot-delimited target paths. It decodes from either a
// single string or an array of strings.
type CopyTo []string

func (c *CopyTo) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*c = CopyTo{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("copy_to must be a string or an array of strings: %w", err)
	}
	*c = many
	return nil
}

// Dynamic is the object-level dynamic mapping setting. Empty means inherit.
type Dynamic string

const (
	DynamicInherit Dynamic = ""
	DynamicTrue    Dynamic = "true"
	DynamicFalse   Dynamic = "false"
	DynamicStrict  Dynamic = "strict"
)

func (d *Dynamic) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		if x {
			*d = DynamicTrue
		} else {
			*d = DynamicFalse
		}
	case string:
		switch Dynamic(x) {
		case DynamicTrue, DynamicFalse, DynamicStrict:
			*d = Dynamic(x)
		default:
			return fmt.Errorf("invalid dynamic value %q", x)
		}
	default:
		return fmt.Errorf("invalid dynamic value %s", b)
	}
	return nil
}

func (d Dynamic) MarshalJSON() ([]byte, error) {
	switch d {
	case DynamicTrue:
		return []byte("true"), nil
	case DynamicFalse:
		return []byte("false"), nil
	}
	return json.Marshal(string(d))
}

// IndexOption holds the "index" setting, which is a boolean in current
// mappings and "analyzed" / "not_analyzed" / "no" in legacy string mappings.
type IndexOption string

const (
	IndexDefault     IndexOption = ""
	IndexTrue        IndexOption = "true"
	IndexFalse       IndexOption = "false"
	IndexAnalyzed    IndexOption = "analyzed"
	IndexNotAnalyzed IndexOption = "not_analyzed"
	IndexNo          IndexOption = "no"
)

func (o *IndexOption) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		if x {
			*o = IndexTrue
		} else {
			*o = IndexFalse
		}
	case string:
		*o = IndexOption(x)
	default:
		return fmt.Errorf("invalid index value %s", b)
	}
	return nil
}

func (o IndexOption) MarshalJSON() ([]byte, error) {
	switch o {
	case IndexTrue:
		return []byte("true"), nil
	case IndexFalse:
		return []byte("false"), nil
	}
	return json.Marshal(string(o))
}
