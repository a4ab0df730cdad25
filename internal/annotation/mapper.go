// Package annotation converts between document fields and the namespaced XML
// islands that SBML elements carry in their <annotation>. Conversions are
// table driven: a Mapping lists which value goes to which element path, and
// the same table serves export and import.
package annotation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"enzymeml/pkg/domain"
)

// FieldKind selects how a value is rendered.
type FieldKind int

const (
	// Text is a scalar rendered with its string form.
	Text FieldKind = iota
	// UnitRef is a unit rendered as its interned wire id.
	UnitRef
	// List repeats the last path element once per string.
	List
	// Records repeats the last path element once per nested Values, laid out
	// by Field.Fields.
	Records
)

// Field binds a value key to an element path. Path segments are separated by
// "/"; a final "@name" segment addresses an attribute.
type Field struct {
	Key    string
	Path   string
	Kind   FieldKind
	Fields []Field
}

// Mapping describes one annotation element.
type Mapping struct {
	Tag    string
	Fields []Field
}

// Empty reports whether the mapping has no element to read or write.
func (m Mapping) Empty() bool { return m.Tag == "" }

// UnitIDs resolves units to wire ids during export.
type UnitIDs interface {
	IDOf(u *domain.UnitDefinition) (string, error)
}

// Values holds field values keyed by Field.Key. Export accepts string,
// float64, *float64, int, bool, []string, *domain.UnitDefinition and
// []Values. Import yields string for a single element, []string for repeated
// elements and []Values for records.
type Values map[string]any

// String returns the scalar value of key, or the first element of a list.
func (v Values) String(key string) string {
	switch x := v[key].(type) {
	case string:
		return x
	case []string:
		if len(x) > 0 {
			return x[0]
		}
	}
	return ""
}

// Strings returns key as a list, wrapping a scalar.
func (v Values) Strings(key string) []string {
	switch x := v[key].(type) {
	case string:
		return []string{x}
	case []string:
		return x
	}
	return nil
}

// Float parses key as a number. Absent, empty and NaN values yield nil.
func (v Values) Float(key string) (*float64, error) {
	s := strings.TrimSpace(v.String(key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("annotation field %s: %w", key, err)
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return &f, nil
}

// Bool parses key as an xsd:boolean.
func (v Values) Bool(key string) bool {
	s := strings.TrimSpace(v.String(key))
	return s == "true" || s == "1" || s == "True"
}

// Records returns the nested values stored under key.
func (v Values) Records(key string) []Values {
	recs, _ := v[key].([]Values)
	return recs
}

// Export renders vals as an element named m.Tag in namespace ns. Absent and
// empty values are omitted; nil is returned when nothing remains.
func Export(ns string, m Mapping, vals Values, ids UnitIDs) (*etree.Element, error) {
	if m.Empty() {
		return nil, nil
	}
	root := etree.NewElement(m.Tag)
	if err := exportFields(root, m.Fields, vals, ids); err != nil {
		return nil, fmt.Errorf("export %s annotation: %w", m.Tag, err)
	}
	if isEmpty(root) {
		return nil, nil
	}
	if ns != "" {
		root.CreateAttr("xmlns", ns)
	}
	return root, nil
}

func exportFields(el *etree.Element, fields []Field, vals Values, ids UnitIDs) error {
	for _, f := range fields {
		raw, ok := vals[f.Key]
		if !ok || raw == nil {
			continue
		}
		parents, leaf := splitPath(f.Path)
		switch f.Kind {
		case List:
			items, _ := raw.([]string)
			if len(items) == 0 {
				continue
			}
			parent := ensurePath(el, parents)
			for _, item := range items {
				parent.CreateElement(leaf).SetText(item)
			}
		case Records:
			recs, _ := raw.([]Values)
			if len(recs) == 0 {
				continue
			}
			parent := ensurePath(el, parents)
			for _, rec := range recs {
				child := etree.NewElement(leaf)
				if err := exportFields(child, f.Fields, rec, ids); err != nil {
					return err
				}
				if !isEmpty(child) {
					parent.AddChild(child)
				}
			}
		default:
			text, err := render(raw, f.Kind, ids)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Key, err)
			}
			if text == "" {
				continue
			}
			parent := ensurePath(el, parents)
			if strings.HasPrefix(leaf, "@") {
				parent.CreateAttr(leaf[1:], text)
			} else {
				parent.CreateElement(leaf).SetText(text)
			}
		}
	}
	pruneEmpty(el)
	return nil
}

func render(raw any, kind FieldKind, ids UnitIDs) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case float64:
		return formatFloat(x), nil
	case *float64:
		if x == nil {
			return "", nil
		}
		return formatFloat(*x), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case *domain.UnitDefinition:
		if x == nil {
			return "", nil
		}
		if kind != UnitRef || ids == nil {
			return "", fmt.Errorf("unit value without unit reference mapping")
		}
		return ids.IDOf(x)
	}
	return "", fmt.Errorf("unsupported value type %T", raw)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func splitPath(path string) ([]string, string) {
	parts := strings.Split(path, "/")
	return parts[:len(parts)-1], parts[len(parts)-1]
}

func ensurePath(el *etree.Element, parents []string) *etree.Element {
	for _, p := range parents {
		child := el.SelectElement(p)
		if child == nil {
			child = el.CreateElement(p)
		}
		el = child
	}
	return el
}

func isEmpty(el *etree.Element) bool {
	return len(el.Attr) == 0 && len(el.ChildElements()) == 0 && strings.TrimSpace(el.Text()) == ""
}

func pruneEmpty(el *etree.Element) {
	for _, child := range el.ChildElements() {
		pruneEmpty(child)
		if isEmpty(child) {
			el.RemoveChild(child)
		}
	}
}

// Import reads the fields of m from el. Missing content is simply absent from
// the result.
func Import(m Mapping, el *etree.Element) Values {
	vals := Values{}
	if el == nil {
		return vals
	}
	importFields(el, m.Fields, vals)
	return vals
}

// ImportString parses raw XML and imports the first element named m.Tag in
// namespace ns, searching the root and its children.
func ImportString(ns string, m Mapping, raw string) (Values, error) {
	if strings.TrimSpace(raw) == "" || m.Empty() {
		return Values{}, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, fmt.Errorf("read %s annotation: %w", m.Tag, err)
	}
	root := doc.Root()
	if root == nil {
		return Values{}, nil
	}
	if root.Tag == m.Tag && (ns == "" || root.NamespaceURI() == ns) {
		return Import(m, root), nil
	}
	return Import(m, Find(root, ns, m.Tag)), nil
}

func importFields(el *etree.Element, fields []Field, vals Values) {
	for _, f := range fields {
		parents, leaf := splitPath(f.Path)
		parent := el
		for _, p := range parents {
			if parent = parent.SelectElement(p); parent == nil {
				break
			}
		}
		if parent == nil {
			continue
		}
		if strings.HasPrefix(leaf, "@") {
			if attr := parent.SelectAttr(leaf[1:]); attr != nil {
				vals[f.Key] = attr.Value
			}
			continue
		}
		children := parent.SelectElements(leaf)
		if len(children) == 0 {
			continue
		}
		switch f.Kind {
		case Records:
			recs := make([]Values, 0, len(children))
			for _, child := range children {
				rec := Values{}
				importFields(child, f.Fields, rec)
				recs = append(recs, rec)
			}
			vals[f.Key] = recs
		case List:
			vals[f.Key] = texts(children)
		default:
			if len(children) == 1 {
				vals[f.Key] = strings.TrimSpace(children[0].Text())
			} else {
				vals[f.Key] = texts(children)
			}
		}
	}
}

func texts(els []*etree.Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, strings.TrimSpace(el.Text()))
	}
	return out
}

// Find returns the first direct child of el with the given local tag whose
// namespace is ns. An empty ns matches any namespace.
func Find(el *etree.Element, ns, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if child.Tag == tag && (ns == "" || child.NamespaceURI() == ns) {
			return child
		}
	}
	return nil
}
