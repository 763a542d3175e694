// Package pdf is a small, read-only PDF reader. It understands just enough of
// the file structure (cross-reference tables and streams, object streams, the
// page tree) to count pages and report page geometry for documents produced by
// Chrome's print-to-PDF.
package pdf

// Kind identifies the type of a PDF object.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Real
	String
	Name
	Array
	Dictionary
	Stream
	Ref
)

// Object is a parsed PDF object. Only the field matching Kind is meaningful.
type Object struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Real  float64
	Str   []byte
	Name  string
	Items []*Object
	Dict  Dict
	Data  []byte // raw, still-encoded stream body
	Ref   Reference
}

// Reference is an indirect object reference (N G R).
type Reference struct {
	Number     int
	Generation int
}

// Dict is a PDF dictionary keyed by name without the leading slash.
type Dict map[string]*Object

var null = &Object{Kind: Null}

// Int returns the integer value stored under key. Reals are truncated.
func (d Dict) Int(key string) (int64, bool) {
	o, ok := d[key]
	if !ok {
		return 0, false
	}
	switch o.Kind {
	case Int:
		return o.Int, true
	case Real:
		return int64(o.Real), true
	}
	return 0, false
}

// Name returns the name value stored under key.
func (d Dict) Name(key string) (string, bool) {
	o, ok := d[key]
	if !ok || o.Kind != Name {
		return "", false
	}
	return o.Name, true
}

// Array returns the array stored under key. A lone object is returned as a
// one-element array, which is how PDF writers often abbreviate /Filter.
func (d Dict) Array(key string) ([]*Object, bool) {
	o, ok := d[key]
	if !ok {
		return nil, false
	}
	if o.Kind == Array {
		return o.Items, true
	}
	return []*Object{o}, true
}

// number returns the numeric value of o, or 0.
func number(o *Object) float64 {
	if o == nil {
		return 0
	}
	switch o.Kind {
	case Int:
		return float64(o.Int)
	case Real:
		return o.Real
	}
	return 0
}
