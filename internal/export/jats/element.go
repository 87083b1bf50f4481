package jats

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
)

// Element is one node of the output element tree. An element with an empty
// Name is a fragment: only its children are written.
type Element struct {
	Name     string
	Attr     []xml.Attr
	Text     string
	IsText   bool
	Children []*Element
}

// Target builds Elements. Scope attrs carry the tag under "tag" and XML
// attributes under keys prefixed with "@".
type Target struct{}

var _ engine.Target[*Element] = Target{}

func (Target) NewNode(_ doctree.Kind, attrs doctree.Attrs) *Element {
	e := &Element{Name: attrs.String("tag")}
	var keys []string
	for k := range attrs {
		if strings.HasPrefix(k, "@") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := attrs.String(k)
		if v == "" {
			continue
		}
		e.Attr = append(e.Attr, xml.Attr{Name: xml.Name{Local: k[1:]}, Value: v})
	}
	return e
}

func (Target) NewText(value string) *Element { return &Element{IsText: true, Text: value} }

func (Target) AppendChild(parent, child *Element) {
	parent.Children = append(parent.Children, child)
}

func (Target) MergeText(parent *Element, value string) bool {
	k := len(parent.Children)
	if k == 0 || !parent.Children[k-1].IsText {
		return false
	}
	parent.Children[k-1].Text += value
	return true
}

// el builds scope attrs for tag with alternating attribute names and values.
func el(tag string, kv ...string) doctree.Attrs {
	a := doctree.Attrs{"tag": tag}
	for i := 0; i+1 < len(kv); i += 2 {
		a["@"+kv[i]] = kv[i+1]
	}
	return a
}

const doctype = `DOCTYPE article PUBLIC "-//NLM//DTD JATS (Z39.96) Journal Archiving and Interchange DTD v1.3 20210610//EN" "JATS-archivearticle1-3.dtd"`

// Encode writes root as a standalone XML document.
func Encode(w io.Writer, root *Element) error {
	enc := xml.NewEncoder(w)
	if err := enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData("\n")); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.Directive(doctype)); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData("\n")); err != nil {
		return err
	}
	if err := encode(enc, root); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData("\n")); err != nil {
		return err
	}
	return enc.Flush()
}

func encode(enc *xml.Encoder, e *Element) error {
	if e.IsText {
		return enc.EncodeToken(xml.CharData(e.Text))
	}
	if e.Name == "" {
		for _, c := range e.Children {
			if err := encode(enc, c); err != nil {
				return err
			}
		}
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: e.Name}, Attr: e.Attr}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("encode <%s>: %w", e.Name, err)
	}
	for _, c := range e.Children {
		if err := encode(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// BodyText returns the character data inside <body> of a JATS document.
func BodyText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sb strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read jats: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 || t.Name.Local == "body" {
				depth++
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}
}
