package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

type eventKind int

const (
	tagOpen eventKind = iota + 1
	tagClose
)

type attr struct {
	name  string
	value string
}

// event is one element boundary. attrs is only set on tagOpen and keeps
// document order.
type event struct {
	kind  eventKind
	name  string
	attrs []attr
}

// tokenizer pulls element events out of an XML document one at a time.
// encoding/xml's RawToken leaves nesting checks to the caller, so the
// tokenizer tracks open elements itself and reports expat-style errors.
type tokenizer struct {
	dec      *xml.Decoder
	open     []string
	sawRoot  bool
	rootDone bool
	// start is the offset of the first token; a UTF-8 BOM may precede it.
	start int64
}

func newTokenizer(doc []byte) *tokenizer {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = true
	dec.CharsetReader = charsetReader
	t := &tokenizer{dec: dec}
	if bytes.HasPrefix(doc, utf8BOM) {
		t.start = int64(len(utf8BOM))
	}
	return t
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// charsetReader honours the encoding named in the XML declaration. UTF-16
// documents have already been transcoded to UTF-8 by the loader.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.HasPrefix(strings.ToLower(label), "utf-16") {
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}

// next returns the next element event, io.EOF once a complete document has
// been consumed, or a *SyntaxError.
func (t *tokenizer) next() (event, error) {
	for {
		off := t.dec.InputOffset()
		tok, err := t.dec.RawToken()
		if errors.Is(err, io.EOF) {
			return event{}, t.finish()
		}
		if err != nil {
			return event{}, t.wrap(err)
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if t.rootDone {
				return event{}, t.errorf("junk after document element")
			}
			t.sawRoot = true
			name := qualified(tok.Name)
			attrs := make([]attr, 0, len(tok.Attr))
			for _, a := range tok.Attr {
				n := qualified(a.Name)
				for _, prev := range attrs {
					if prev.name == n {
						return event{}, t.errorf("duplicate attribute")
					}
				}
				attrs = append(attrs, attr{name: n, value: a.Value})
			}
			t.open = append(t.open, name)
			return event{kind: tagOpen, name: name, attrs: attrs}, nil
		case xml.EndElement:
			name := qualified(tok.Name)
			if len(t.open) == 0 || t.open[len(t.open)-1] != name {
				return event{}, t.errorf("mismatched tag")
			}
			t.open = t.open[:len(t.open)-1]
			if len(t.open) == 0 {
				t.rootDone = true
			}
			return event{kind: tagClose, name: name}, nil
		case xml.ProcInst:
			if tok.Target == "xml" && off != t.start {
				return event{}, t.errorf("XML or text declaration not at start of entity")
			}
		case xml.CharData:
			if len(t.open) == 0 && len(bytes.Trim(tok, " \t\r\n\ufeff")) > 0 {
				if t.rootDone {
					return event{}, t.errorf("junk after document element")
				}
				return event{}, t.errorf("syntax error")
			}
		}
	}
}

func (t *tokenizer) finish() error {
	switch {
	case len(t.open) > 0:
		return t.errorf("unclosed token")
	case !t.sawRoot:
		return t.errorf("no element found")
	}
	return io.EOF
}

func (t *tokenizer) errorf(msg string) *SyntaxError {
	line, _ := t.dec.InputPos()
	return &SyntaxError{Line: line, Msg: msg}
}

func (t *tokenizer) wrap(err error) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &SyntaxError{Line: se.Line, Msg: se.Msg}
	}
	line, _ := t.dec.InputPos()
	return &SyntaxError{Line: line, Msg: err.Error()}
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
