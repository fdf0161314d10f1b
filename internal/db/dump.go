package db

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Dump errors.
var (
	ErrNilSink    = errors.New("db: nil dump sink")
	ErrDumpFailed = errors.New("db: dump failed")
)

// Attr is one attribute of a dumped element.
type Attr struct {
	Name  string
	Value string
}

// DumpSink receives a database dump as a tree of tagged elements.
type DumpSink interface {
	StartElement(name string, attrs ...Attr) error
	Text(s string) error
	EndElement(name string) error
}

// XMLSink writes a dump as indented XML.
type XMLSink struct {
	enc *xml.Encoder
}

// NewXMLSink creates a sink writing to w. Call Flush when done.
func NewXMLSink(w io.Writer) *XMLSink {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &XMLSink{enc: enc}
}

func (x *XMLSink) StartElement(name string, attrs ...Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	for _, a := range attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	return x.enc.EncodeToken(start)
}

func (x *XMLSink) Text(s string) error {
	return x.enc.EncodeToken(xml.CharData(s))
}

func (x *XMLSink) EndElement(name string) error {
	return x.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

// Flush writes any buffered output.
func (x *XMLSink) Flush() error {
	return x.enc.Flush()
}

// Dump writes every committed top-level object to sink. Embedded objects
// appear inside the field that contains them.
func (s *Store) Dump(sink DumpSink) error {
	if sink == nil {
		return ErrNilSink
	}
	d := &dumper{sink: sink, store: s}

	if err := sink.StartElement("obastore", Attr{"objects", fmt.Sprint(s.Len())}); err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	for _, r := range s.Refs(0) {
		obj := s.get(r)
		if obj == nil {
			continue
		}
		if err := d.object(obj); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDumpFailed, r, err)
		}
	}
	if err := sink.EndElement("obastore"); err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	return nil
}

type dumper struct {
	sink  DumpSink
	store *Store
}

func (d *dumper) object(obj *Object) error {
	attrs := []Attr{{"type", obj.typ.Name}, {"ref", obj.ref.String()}}
	if l := obj.Label(); l != "" {
		attrs = append(attrs, Attr{"label", l})
	}
	if err := d.sink.StartElement("object", attrs...); err != nil {
		return err
	}
	for _, f := range obj.Fields() {
		if !f.IsDefined() || f.Code() == 0 {
			continue
		}
		if err := f.emit(d); err != nil {
			return err
		}
	}
	return d.sink.EndElement("object")
}

func (d *dumper) startField(f Field) error {
	return d.sink.StartElement("field", Attr{"name", f.Name()}, Attr{"kind", f.Def().Kind.String()})
}

func (d *dumper) element(name, text string, attrs ...Attr) error {
	if err := d.sink.StartElement(name, attrs...); err != nil {
		return err
	}
	if err := d.sink.Text(text); err != nil {
		return err
	}
	return d.sink.EndElement(name)
}

func (d *dumper) values(f Field, vals []string) error {
	if err := d.startField(f); err != nil {
		return err
	}
	for _, v := range vals {
		if err := d.element("value", v); err != nil {
			return err
		}
	}
	return d.sink.EndElement("field")
}

func (d *dumper) refs(f Field, targets []ref.Ref) error {
	if err := d.startField(f); err != nil {
		return err
	}
	for _, r := range targets {
		attrs := []Attr{{"target", r.String()}}
		if obj := d.store.get(r); obj != nil {
			if l := obj.Label(); l != "" {
				attrs = append(attrs, Attr{"label", l})
			}
		}
		if err := d.sink.StartElement("ref", attrs...); err != nil {
			return err
		}
		if err := d.sink.EndElement("ref"); err != nil {
			return err
		}
	}
	return d.sink.EndElement("field")
}

func (d *dumper) embedded(f Field, children []ref.Ref) error {
	if err := d.startField(f); err != nil {
		return err
	}
	for _, r := range children {
		child := d.store.get(r)
		if child == nil {
			d.store.log.Warn("embedded object missing from dump", "field", f.Name(), "ref", r.String())
			continue
		}
		if err := d.object(child); err != nil {
			return err
		}
	}
	return d.sink.EndElement("field")
}

func (d *dumper) password(f Field, hashes map[password.Format]string, plaintext string, withPlain bool) error {
	if err := d.startField(f); err != nil {
		return err
	}
	for _, pf := range slices.Sorted(maps.Keys(hashes)) {
		if err := d.element("hash", hashes[pf], Attr{"format", pf.String()}); err != nil {
			return err
		}
	}
	if withPlain {
		if err := d.element("plaintext", plaintext); err != nil {
			return err
		}
	}
	return d.sink.EndElement("field")
}
