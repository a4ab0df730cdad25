package annotation

import (
	"strings"

	"github.com/beevik/etree"
)

const (
	rdfNS     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	dctermsNS = "http://purl.org/dc/terms/"
	bqbiolNS  = "http://biomodels.net/biology-qualifiers/"
)

// Provenance is the RDF description attached to an element with a metaid.
// Identifier and Title keep the values an element had before the writer
// renamed it; References lists bqbiol:is resources.
type Provenance struct {
	Identifier string
	Title      string
	References []string
}

// Empty reports whether there is nothing to describe.
func (p Provenance) Empty() bool {
	return p.Identifier == "" && p.Title == "" && len(p.References) == 0
}

// MetaID derives the metaid of the element with the given SId.
func MetaID(id string) string { return "metaid_" + id }

// Element renders p as an rdf:RDF block describing metaid. Nil is returned
// for an empty provenance.
func (p Provenance) Element(metaid string) *etree.Element {
	if p.Empty() {
		return nil
	}
	root := etree.NewElement("rdf:RDF")
	root.CreateAttr("xmlns:rdf", rdfNS)
	root.CreateAttr("xmlns:dcterms", dctermsNS)
	root.CreateAttr("xmlns:bqbiol", bqbiolNS)

	desc := root.CreateElement("rdf:Description")
	desc.CreateAttr("rdf:about", "#"+metaid)
	if p.Identifier != "" {
		desc.CreateElement("dcterms:identifier").SetText(p.Identifier)
	}
	if p.Title != "" {
		desc.CreateElement("dcterms:title").SetText(p.Title)
	}
	if len(p.References) > 0 {
		bag := desc.CreateElement("bqbiol:is").CreateElement("rdf:Bag")
		for _, ref := range p.References {
			bag.CreateElement("rdf:li").CreateAttr("rdf:resource", ref)
		}
	}
	return root
}

// ReadProvenance extracts the first rdf:Description found in an
// <annotation> element.
func ReadProvenance(annotation *etree.Element) Provenance {
	var p Provenance
	rdf := Find(annotation, rdfNS, "RDF")
	if rdf == nil {
		return p
	}
	desc := Find(rdf, rdfNS, "Description")
	if desc == nil {
		return p
	}
	if el := Find(desc, dctermsNS, "identifier"); el != nil {
		p.Identifier = strings.TrimSpace(el.Text())
	}
	if el := Find(desc, dctermsNS, "title"); el != nil {
		p.Title = strings.TrimSpace(el.Text())
	}
	for _, qual := range desc.ChildElements() {
		if qual.NamespaceURI() != bqbiolNS {
			continue
		}
		for _, bag := range qual.ChildElements() {
			for _, li := range bag.ChildElements() {
				if res := li.SelectAttrValue("rdf:resource", ""); res != "" {
					p.References = append(p.References, res)
				}
			}
		}
	}
	return p
}

// IdentifiersOrg expands a prefixed database id to an identifiers.org URL.
// Values that already look like URLs are returned unchanged.
func IdentifiersOrg(prefix, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.Contains(id, "://") {
		return id
	}
	return "https://identifiers.org/" + prefix + ":" + strings.TrimPrefix(id, prefix+":")
}
