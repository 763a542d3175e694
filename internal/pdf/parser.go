package pdf

import (
	"bytes"
	"errors"
	"strconv"
)

const maxDepth = 100

var errTooDeep = errors.New("pdf: object nesting too deep")

// parser is a recursive-descent reader for PDF object syntax.
type parser struct {
	buf   []byte
	pos   int
	depth int
}

func newParser(buf []byte, pos int) *parser {
	return &parser{buf: buf, pos: pos}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skip advances past whitespace and comments.
func (p *parser) skip() {
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		switch {
		case c == '%':
			for p.pos < len(p.buf) && p.buf[p.pos] != '\n' && p.buf[p.pos] != '\r' {
				p.pos++
			}
		case isSpace(c):
			p.pos++
		default:
			return
		}
	}
}

// keyword consumes kw if it is next in the input.
func (p *parser) keyword(kw string) bool {
	if !bytes.HasPrefix(p.buf[p.pos:], []byte(kw)) {
		return false
	}
	p.pos += len(kw)
	return true
}

// token reads a run of regular characters.
func (p *parser) token() string {
	start := p.pos
	for p.pos < len(p.buf) && !isSpace(p.buf[p.pos]) && !isDelimiter(p.buf[p.pos]) {
		p.pos++
	}
	return string(p.buf[start:p.pos])
}

// objectHeader consumes "N G obj" and returns N.
func (p *parser) objectHeader() (int, bool) {
	p.skip()
	n, err := strconv.Atoi(p.token())
	if err != nil {
		return 0, false
	}
	p.skip()
	if _, err := strconv.Atoi(p.token()); err != nil {
		return 0, false
	}
	p.skip()
	return n, p.keyword("obj")
}

// parse reads the next object.
func (p *parser) parse() (*Object, error) {
	if p.depth > maxDepth {
		return nil, errTooDeep
	}
	p.depth++
	defer func() { p.depth-- }()

	p.skip()
	if p.pos >= len(p.buf) {
		return null, nil
	}

	switch c := p.buf[p.pos]; {
	case c == '/':
		return &Object{Kind: Name, Name: p.name()}, nil
	case c == '<' && p.pos+1 < len(p.buf) && p.buf[p.pos+1] == '<':
		return p.dictOrStream()
	case c == '<':
		return &Object{Kind: String, Str: p.hexString()}, nil
	case c == '(':
		return &Object{Kind: String, Str: p.literalString()}, nil
	case c == '[':
		return p.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.numberOrRef(), nil
	case p.keyword("true"):
		return &Object{Kind: Bool, Bool: true}, nil
	case p.keyword("false"):
		return &Object{Kind: Bool}, nil
	case p.keyword("null"):
		return null, nil
	default:
		// Operators and stray keywords carry no value here.
		p.pos++
		return null, nil
	}
}

func (p *parser) name() string {
	p.pos++
	raw := p.token()
	if !bytes.ContainsRune([]byte(raw), '#') {
		return raw
	}
	var b bytes.Buffer
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			b.WriteByte(unhex(raw[i+1])<<4 | unhex(raw[i+2]))
			i += 2
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func (p *parser) hexString() []byte {
	p.pos++
	var b bytes.Buffer
	var digits []byte
	for p.pos < len(p.buf) && p.buf[p.pos] != '>' {
		if c := p.buf[p.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		p.pos++
	}
	if p.pos < len(p.buf) {
		p.pos++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	for i := 0; i < len(digits); i += 2 {
		b.WriteByte(unhex(digits[i])<<4 | unhex(digits[i+1]))
	}
	return b.Bytes()
}

func (p *parser) literalString() []byte {
	p.pos++
	var b bytes.Buffer
	for depth := 1; p.pos < len(p.buf); {
		c := p.buf[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.Bytes()
			}
		case '\\':
			if p.pos >= len(p.buf) {
				return b.Bytes()
			}
			c = p.buf[p.pos]
			p.pos++
			switch c {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r', '\n':
				if c == '\r' && p.pos < len(p.buf) && p.buf[p.pos] == '\n' {
					p.pos++
				}
				continue
			default:
				if c >= '0' && c <= '7' {
					v := c - '0'
					for i := 0; i < 2 && p.pos < len(p.buf) && p.buf[p.pos] >= '0' && p.buf[p.pos] <= '7'; i++ {
						v = v*8 + p.buf[p.pos] - '0'
						p.pos++
					}
					c = v
				}
			}
		}
		b.WriteByte(c)
	}
	return b.Bytes()
}

func (p *parser) array() (*Object, error) {
	p.pos++
	arr := &Object{Kind: Array}
	for {
		p.skip()
		if p.pos >= len(p.buf) {
			return arr, nil
		}
		if p.buf[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		o, err := p.parse()
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, o)
	}
}

func (p *parser) dictOrStream() (*Object, error) {
	p.pos += 2
	d := make(Dict)
	for {
		p.skip()
		if p.pos >= len(p.buf) {
			break
		}
		if p.keyword(">>") {
			break
		}
		if p.buf[p.pos] != '/' {
			p.pos++
			continue
		}
		key := p.name()
		val, err := p.parse()
		if err != nil {
			return nil, err
		}
		d[key] = val
	}

	p.skip()
	if !p.keyword("stream") {
		return &Object{Kind: Dictionary, Dict: d}, nil
	}
	if p.pos < len(p.buf) && p.buf[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.buf) && p.buf[p.pos] == '\n' {
		p.pos++
	}

	start := p.pos
	var end int
	if n, ok := d.Int("Length"); ok && d["Length"].Kind == Int && n >= 0 && n <= int64(len(p.buf)-start) {
		end = start + int(n)
	} else if i := bytes.Index(p.buf[start:], []byte("endstream")); i >= 0 {
		end = start + i
	} else {
		end = len(p.buf)
	}
	p.pos = end
	p.skip()
	p.keyword("endstream")
	return &Object{Kind: Stream, Dict: d, Data: p.buf[start:end]}, nil
}

func (p *parser) numberOrRef() *Object {
	tok := p.token()
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return null
		}
		return &Object{Kind: Real, Real: f}
	}

	after := p.pos
	p.skip()
	if g, err := strconv.Atoi(p.token()); err == nil {
		p.skip()
		if p.pos < len(p.buf) && p.buf[p.pos] == 'R' &&
			(p.pos+1 == len(p.buf) || isSpace(p.buf[p.pos+1]) || isDelimiter(p.buf[p.pos+1])) {
			p.pos++
			return &Object{Kind: Ref, Ref: Reference{Number: int(n), Generation: g}}
		}
	}
	p.pos = after
	return &Object{Kind: Int, Int: n}
}
