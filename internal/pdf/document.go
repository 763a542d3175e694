package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNotPDF is returned by Load when the data lacks a %PDF- header.
var ErrNotPDF = errors.New("pdf: not a PDF file")

type xrefEntry struct {
	offset int64
	inUse  bool

	// Number of the object stream holding this object (PDF 1.5+), or 0.
	container int
}

// Document is a parsed PDF file held in memory.
type Document struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer Dict
	cache   map[int]*Object
}

// Open reads and parses the PDF file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: reading file: %w", err)
	}
	return Load(data)
}

// Load parses a PDF held in memory. The slice is retained, not copied.
func Load(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	doc := &Document{
		data:  data,
		xref:  make(map[int]xrefEntry),
		cache: make(map[int]*Object),
	}
	start, err := doc.startXRef()
	if err != nil {
		return nil, err
	}
	if err := doc.readXRef(start, 0); err != nil {
		return nil, fmt.Errorf("pdf: loading xref: %w", err)
	}
	if doc.trailer == nil {
		return nil, errors.New("pdf: missing trailer")
	}
	return doc, nil
}

// Version returns the header version, e.g. "1.4".
func (doc *Document) Version() string {
	line := doc.data[len("%PDF-"):min(len(doc.data), 20)]
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(string(line))
}

func (doc *Document) startXRef() (int64, error) {
	tail := doc.data[max(0, len(doc.data)-1024):]
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, errors.New("pdf: startxref not found")
	}
	p := newParser(tail, i+len("startxref"))
	p.skip()
	off, err := strconv.ParseInt(p.token(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pdf: invalid startxref: %w", err)
	}
	return off, nil
}

// readXRef loads the section at offset and follows /Prev links. Entries seen
// first win, since newer sections come first in the chain.
func (doc *Document) readXRef(offset int64, hops int) error {
	if hops > 64 {
		return errors.New("xref chain too long")
	}
	if offset < 0 || offset >= int64(len(doc.data)) {
		return fmt.Errorf("xref offset %d out of range", offset)
	}
	p := newParser(doc.data, int(offset))
	p.skip()

	var section Dict
	var err error
	if p.keyword("xref") {
		section, err = doc.readXRefTable(p)
	} else {
		section, err = doc.readXRefStream(p)
	}
	if err != nil {
		return err
	}
	if doc.trailer == nil {
		doc.trailer = section
	}
	if prev, ok := section.Int("Prev"); ok && prev > 0 {
		return doc.readXRef(prev, hops+1)
	}
	return nil
}

func (doc *Document) readXRefTable(p *parser) (Dict, error) {
	for {
		p.skip()
		if p.keyword("trailer") {
			break
		}
		first, err1 := strconv.Atoi(p.token())
		p.skip()
		count, err2 := strconv.Atoi(p.token())
		if err1 != nil || err2 != nil {
			return nil, errors.New("malformed xref subsection")
		}
		for i := 0; i < count; i++ {
			p.skip()
			off, err := strconv.ParseInt(p.token(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed xref entry for object %d", first+i)
			}
			p.skip()
			p.token() // generation
			p.skip()
			inUse := p.keyword("n")
			if !inUse {
				p.keyword("f")
			}
			if _, seen := doc.xref[first+i]; !seen {
				doc.xref[first+i] = xrefEntry{offset: off, inUse: inUse}
			}
		}
	}
	t, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("parsing trailer: %w", err)
	}
	if t.Kind != Dictionary {
		return nil, errors.New("trailer is not a dictionary")
	}
	return t.Dict, nil
}

func (doc *Document) readXRefStream(p *parser) (Dict, error) {
	if _, ok := p.objectHeader(); !ok {
		return nil, errors.New("xref offset does not point at an object")
	}
	s, err := p.parse()
	if err != nil {
		return nil, err
	}
	if s.Kind != Stream {
		return nil, errors.New("xref object is not a stream")
	}
	data, err := decode(s)
	if err != nil {
		return nil, err
	}

	w, _ := s.Dict.Array("W")
	if len(w) < 3 {
		return nil, errors.New("xref stream without /W")
	}
	for _, f := range w[:3] {
		if f.Kind != Int || f.Int < 0 || f.Int > 8 {
			return nil, fmt.Errorf("xref stream with invalid /W field %v", f.Int)
		}
	}
	w0, w1, w2 := int(w[0].Int), int(w[1].Int), int(w[2].Int)
	width := w0 + w1 + w2
	if width <= 0 {
		return nil, errors.New("xref stream with empty /W")
	}

	size, _ := s.Dict.Int("Size")
	index := []int64{0, size}
	if arr, ok := s.Dict.Array("Index"); ok && s.Dict["Index"].Kind == Array {
		index = index[:0]
		for _, o := range arr {
			index = append(index, o.Int)
		}
	}

	pos := 0
	for k := 0; k+1 < len(index); k += 2 {
		first, count := int(index[k]), int(index[k+1])
		for i := 0; i < count && pos+width <= len(data); i++ {
			row := data[pos : pos+width]
			pos += width

			typ := 1 // default when the type field is omitted
			if w0 > 0 {
				typ = field(row[:w0])
			}
			f1 := field(row[w0 : w0+w1])
			id := first + i
			if _, seen := doc.xref[id]; seen {
				continue
			}
			switch typ {
			case 0:
				doc.xref[id] = xrefEntry{}
			case 1:
				doc.xref[id] = xrefEntry{offset: int64(f1), inUse: true}
			case 2:
				doc.xref[id] = xrefEntry{inUse: true, container: f1}
			}
		}
	}
	return s.Dict, nil
}

func field(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

// Resolve follows o if it is an indirect reference. Unresolvable references
// yield the null object, as PDF 1.7 section 7.3.10 requires.
func (doc *Document) Resolve(o *Object) *Object {
	if o == nil {
		return null
	}
	if o.Kind != Ref {
		return o
	}
	return doc.object(o.Ref.Number, 0)
}

func (doc *Document) object(num, hops int) *Object {
	if o, ok := doc.cache[num]; ok {
		return o
	}
	e, ok := doc.xref[num]
	if !ok || !e.inUse || hops > 8 {
		return null
	}

	var o *Object
	var err error
	if e.container != 0 {
		o, err = doc.fromObjectStream(num, e, hops)
	} else {
		o, err = doc.at(e.offset)
	}
	if err != nil {
		return null
	}
	doc.cache[num] = o
	return o
}

func (doc *Document) at(offset int64) (*Object, error) {
	if offset < 0 || offset >= int64(len(doc.data)) {
		return nil, fmt.Errorf("object offset %d out of range", offset)
	}
	p := newParser(doc.data, int(offset))
	if _, ok := p.objectHeader(); !ok {
		return nil, fmt.Errorf("no object at offset %d", offset)
	}
	return p.parse()
}

func (doc *Document) fromObjectStream(num int, e xrefEntry, hops int) (*Object, error) {
	s := doc.object(e.container, hops+1)
	if s.Kind != Stream {
		return nil, errors.New("object stream container is not a stream")
	}
	data, err := decode(s)
	if err != nil {
		return nil, err
	}
	n, _ := s.Dict.Int("N")
	first, _ := s.Dict.Int("First")

	// The header is N pairs of "objnum offset".
	p := newParser(data, 0)
	for i := int64(0); i < n; i++ {
		p.skip()
		id, err1 := strconv.Atoi(p.token())
		p.skip()
		off, err2 := strconv.Atoi(p.token())
		if err1 != nil || err2 != nil {
			break
		}
		if id == num {
			if first < 0 || off < 0 || first+int64(off) >= int64(len(data)) {
				return nil, fmt.Errorf("object %d offset out of range in object stream %d", num, e.container)
			}
			return newParser(data, int(first)+off).parse()
		}
	}
	return nil, fmt.Errorf("object %d not found in object stream %d", num, e.container)
}

// Catalog returns the document catalog.
func (doc *Document) Catalog() (Dict, error) {
	root := doc.Resolve(doc.trailer["Root"])
	if root.Kind != Dictionary {
		return nil, errors.New("pdf: missing document catalog")
	}
	return root.Dict, nil
}

func (doc *Document) pageTree() (Dict, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	pages := doc.Resolve(cat["Pages"])
	if pages.Kind != Dictionary {
		return nil, errors.New("pdf: missing page tree")
	}
	return pages.Dict, nil
}

// PageCount returns the number of pages. The /Count of the page tree root is
// trusted when present; otherwise the tree is walked.
func (doc *Document) PageCount() (int, error) {
	root, err := doc.pageTree()
	if err != nil {
		return 0, err
	}
	if c := doc.Resolve(root["Count"]); c.Kind == Int && c.Int >= 0 {
		return int(c.Int), nil
	}
	pages, err := doc.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// Pages returns the leaf page dictionaries in document order.
func (doc *Document) Pages() ([]Dict, error) {
	root, err := doc.pageTree()
	if err != nil {
		return nil, err
	}
	var pages []Dict
	seen := make(map[int]bool)
	if cat, err := doc.Catalog(); err == nil {
		if ref := cat["Pages"]; ref != nil && ref.Kind == Ref {
			seen[ref.Ref.Number] = true
		}
	}
	doc.walk(root, 0, seen, &pages)
	return pages, nil
}

// walk collects leaves below node. Each indirect node is visited once, so
// a Kids array pointing back up the tree cannot loop.
func (doc *Document) walk(node Dict, depth int, seen map[int]bool, pages *[]Dict) {
	if depth > maxDepth {
		return
	}
	if typ, _ := node.Name("Type"); typ == "Page" {
		*pages = append(*pages, node)
		return
	}
	kids := doc.Resolve(node["Kids"])
	for _, k := range kids.Items {
		if k.Kind == Ref {
			if seen[k.Ref.Number] {
				continue
			}
			seen[k.Ref.Number] = true
		}
		if kid := doc.Resolve(k); kid.Kind == Dictionary {
			doc.walk(kid.Dict, depth+1, seen, pages)
		}
	}
}

// PageInfo describes the geometry of a page in PDF points (1/72 inch).
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// PageInfo reports the MediaBox size and rotation of page.
func (doc *Document) PageInfo(page Dict) PageInfo {
	var info PageInfo
	if box := doc.Resolve(page["MediaBox"]); box.Kind == Array && len(box.Items) >= 4 {
		info.Width = number(doc.Resolve(box.Items[2])) - number(doc.Resolve(box.Items[0]))
		info.Height = number(doc.Resolve(box.Items[3])) - number(doc.Resolve(box.Items[1]))
	}
	if rot := doc.Resolve(page["Rotate"]); rot.Kind == Int {
		info.Rotation = int(rot.Int)
	}
	return info
}

// CountPages is a convenience wrapper around Load and PageCount.
func CountPages(data []byte) (int, error) {
	doc, err := Load(data)
	if err != nil {
		return 0, err
	}
	return doc.PageCount()
}
