// Package sbml transcodes documents to and from SBML Level 3 models packed in
// COMBINE archives together with their measurement table.
//
// Every call owns its state: Serialize builds an exportContext holding the
// interned units and the model under construction, Parse an importContext
// holding the detected annotation schema and the unit index. Nothing is
// shared between calls, so independent documents may be transcoded
// concurrently.
package sbml

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const (
	coreNS = "http://www.sbml.org/sbml/level3/version2/core"

	// ModelLocation and DataLocation are the archive entries written by
	// WriteArchive.
	ModelLocation = "./model.xml"
	DataLocation  = "./data.tsv"
)

// SBO terms distinguishing species variants.
const (
	sboSmallMolecule = "SBO:0000247"
	sboProtein       = "SBO:0000252"
	sboComplex       = "SBO:0000296"
)

const celsiusOffset = 273.15

// Option configures Serialize and Parse.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	verbose bool
}

// WithLogger routes warnings and consistency findings to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVerbose logs consistency warnings, not only errors.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func setBool(el *etree.Element, key string, v bool) {
	el.CreateAttr(key, strconv.FormatBool(v))
}

func boolAttr(el *etree.Element, key string, def bool) bool {
	attr := el.SelectAttr(key)
	if attr == nil {
		return def
	}
	v := strings.TrimSpace(attr.Value)
	return v == "true" || v == "1"
}

// floatAttr reads a numeric attribute. Absent, malformed and NaN values
// yield nil.
func floatAttr(el *etree.Element, key string) *float64 {
	attr := el.SelectAttr(key)
	if attr == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64)
	if err != nil || f != f {
		return nil
	}
	return &f
}

// child returns the first direct child with the given local tag in the SBML
// core namespace or without a namespace.
func child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag != tag {
			continue
		}
		if ns := c.NamespaceURI(); ns == "" || strings.HasPrefix(ns, "http://www.sbml.org/sbml/level3") || strings.HasPrefix(ns, "http://www.sbml.org/sbml/level2") {
			return c
		}
	}
	return nil
}

// listOf returns the children of the named list element.
func listOf(el *etree.Element, list, item string) []*etree.Element {
	l := child(el, list)
	if l == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range l.ChildElements() {
		if c.Tag == item {
			out = append(out, c)
		}
	}
	return out
}
