package jsontok

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrAborted is returned when a Visitor callback returns false. It is a
// clean abort, not a syntax error, but both cause Decoder.Parse to fail.
var ErrAborted = errors.New("jsontok: visitor aborted parsing")

// Options controls the tokenizer's leniency, mirroring the text-schema
// parser's own JSON options: trailing commas and unquoted object keys are
// accepted, and these are the only two relaxations made to strict JSON
// grammar.
type Options struct {
	AllowTrailingCommas bool
	AllowUnquotedKeys   bool
}

// Decoder drives a Visitor over an unbounded, potentially blocking byte
// stream. It holds no document state of its own between top-level Parse
// calls; all path/subtree bookkeeping belongs to the Visitor.
type Decoder struct {
	r    *bufio.Reader
	opts Options
	pos  int64
}

// NewDecoder wraps r. r is read lazily and may block. Reads go through a
// bufio.Reader, so bytes past the current value may already have been taken
// from r into the Decoder's buffer when a callback runs.
func NewDecoder(r io.Reader, opts Options) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br, opts: opts}
}

// Parse consumes exactly one JSON value from the current position and
// drives v. It is the tokenizer's single recursion entry point: called once
// by a caller for the top-level document, and again by Visitor
// implementations from within ParseObjectItem/ParseArrayItem to consume a
// container item's value.
//
// At top level, io.EOF with nothing yet consumed is returned verbatim so
// callers can treat an empty document as success; mid-value EOF is a syntax
// error.
func (d *Decoder) Parse(v Visitor) (err error) {
	if err := d.skipSpace(); err != nil {
		return err
	}
	b, err := d.peekByte()
	if err != nil {
		return err
	}
	defer func() {
		if errors.Is(err, io.EOF) {
			err = d.syntaxErrorf("unexpected end of input")
		}
	}()
	switch {
	case b == '{':
		return d.object(v)
	case b == '[':
		return d.array(v)
	case b == '"':
		s, err := d.quotedString()
		if err != nil {
			return err
		}
		if !v.ParseString(s) {
			return ErrAborted
		}
		return nil
	case b == 't' || b == 'f':
		return d.literalBool(v)
	case b == 'n':
		return d.literalNull(v)
	case b == '-' || (b >= '0' && b <= '9'):
		return d.number(v)
	default:
		return d.syntaxErrorf("unexpected byte %q", b)
	}
}

func (d *Decoder) object(v Visitor) error {
	d.discard(1) // '{'
	if !v.ParseObjectStart() {
		return ErrAborted
	}
	if err := d.skipSpace(); err != nil {
		return err
	}
	b, err := d.peekByte()
	if err != nil {
		return err
	}
	if b == '}' {
		d.discard(1)
		if !v.ParseObjectStop() {
			return ErrAborted
		}
		return nil
	}
	for {
		if err := d.skipSpace(); err != nil {
			return err
		}
		key, err := d.objectKey()
		if err != nil {
			return err
		}
		if err := d.skipSpace(); err != nil {
			return err
		}
		if err := d.expect(':'); err != nil {
			return err
		}
		if !v.ParseObjectItem(d, key) {
			return ErrAborted
		}
		if err := d.skipSpace(); err != nil {
			return err
		}
		b, err := d.peekByte()
		if err != nil {
			return err
		}
		switch b {
		case ',':
			d.discard(1)
			if d.opts.AllowTrailingCommas {
				if err := d.skipSpace(); err != nil {
					return err
				}
				if nb, err := d.peekByte(); err == nil && nb == '}' {
					d.discard(1)
					if !v.ParseObjectStop() {
						return ErrAborted
					}
					return nil
				}
			}
			continue
		case '}':
			d.discard(1)
			if !v.ParseObjectStop() {
				return ErrAborted
			}
			return nil
		default:
			return d.syntaxErrorf("expected ',' or '}', got %q", b)
		}
	}
}

func (d *Decoder) array(v Visitor) error {
	d.discard(1) // '['
	if !v.ParseArrayStart() {
		return ErrAborted
	}
	if err := d.skipSpace(); err != nil {
		return err
	}
	b, err := d.peekByte()
	if err != nil {
		return err
	}
	if b == ']' {
		d.discard(1)
		if !v.ParseArrayStop(0) {
			return ErrAborted
		}
		return nil
	}
	idx := 0
	for {
		if err := d.skipSpace(); err != nil {
			return err
		}
		if !v.ParseArrayItem(d, idx) {
			return ErrAborted
		}
		idx++
		if err := d.skipSpace(); err != nil {
			return err
		}
		b, err := d.peekByte()
		if err != nil {
			return err
		}
		switch b {
		case ',':
			d.discard(1)
			if d.opts.AllowTrailingCommas {
				if err := d.skipSpace(); err != nil {
					return err
				}
				if nb, err := d.peekByte(); err == nil && nb == ']' {
					d.discard(1)
					if !v.ParseArrayStop(idx) {
						return ErrAborted
					}
					return nil
				}
			}
			continue
		case ']':
			d.discard(1)
			if !v.ParseArrayStop(idx) {
				return ErrAborted
			}
			return nil
		default:
			return d.syntaxErrorf("expected ',' or ']', got %q", b)
		}
	}
}

func (d *Decoder) objectKey() (string, error) {
	b, err := d.peekByte()
	if err != nil {
		return "", err
	}
	if b == '"' {
		return d.quotedString()
	}
	if !d.opts.AllowUnquotedKeys {
		return "", d.syntaxErrorf("expected '\"', got %q", b)
	}
	var sb strings.Builder
	for {
		b, err := d.peekByte()
		if err != nil {
			return "", err
		}
		if b == ':' || b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			break
		}
		sb.WriteByte(b)
		d.discard(1)
	}
	if sb.Len() == 0 {
		return "", d.syntaxErrorf("empty unquoted object key")
	}
	return sb.String(), nil
}

func (d *Decoder) quotedString() (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		b, err := d.readByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '"':
			return sb.String(), nil
		case '\\':
			esc, err := d.readByte()
			if err != nil {
				return "", err
			}
			switch esc {
			case '"', '\\', '/':
				sb.WriteByte(esc)
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'u':
				r, err := d.unicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			default:
				return "", d.syntaxErrorf("invalid escape '\\%c'", esc)
			}
		default:
			sb.WriteByte(b)
		}
	}
}

func (d *Decoder) unicodeEscape() (rune, error) {
	hi, err := d.hex4()
	if err != nil {
		return 0, err
	}
	if hi < 0xD800 || hi > 0xDBFF {
		return rune(hi), nil
	}
	// high surrogate: a low surrogate must follow as its own \u escape
	if err := d.expect('\\'); err != nil {
		return 0, err
	}
	if err := d.expect('u'); err != nil {
		return 0, err
	}
	lo, err := d.hex4()
	if err != nil {
		return 0, err
	}
	if lo < 0xDC00 || lo > 0xDFFF {
		return 0, d.syntaxErrorf("invalid low surrogate \\u%04x", lo)
	}
	return ((rune(hi) - 0xD800) << 10) | (rune(lo) - 0xDC00) + 0x10000, nil
}

func (d *Decoder) hex4() (int, error) {
	buf, err := d.r.Peek(4)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(buf), 16, 32)
	if err != nil {
		return 0, d.syntaxErrorf("invalid unicode escape %q", buf)
	}
	d.discard(4)
	return int(v), nil
}

func (d *Decoder) literalBool(v Visitor) error {
	b, err := d.peekByte()
	if err != nil {
		return err
	}
	if b == 't' {
		if err := d.expectLiteral("true"); err != nil {
			return err
		}
		if !v.SetBool(true) {
			return ErrAborted
		}
		return nil
	}
	if err := d.expectLiteral("false"); err != nil {
		return err
	}
	if !v.SetBool(false) {
		return ErrAborted
	}
	return nil
}

func (d *Decoder) literalNull(v Visitor) error {
	if err := d.expectLiteral("null"); err != nil {
		return err
	}
	if !v.SetNull() {
		return ErrAborted
	}
	return nil
}

func (d *Decoder) expectLiteral(lit string) error {
	buf, err := d.r.Peek(len(lit))
	if err != nil {
		return err
	}
	if string(buf) != lit {
		return d.syntaxErrorf("expected literal %q", lit)
	}
	d.discard(len(lit))
	return nil
}

func (d *Decoder) number(v Visitor) error {
	var sb strings.Builder
	isFloat := false

	readDigits := func() error {
		for {
			b, err := d.peekByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			if b < '0' || b > '9' {
				return nil
			}
			sb.WriteByte(b)
			d.discard(1)
		}
	}

	if b, _ := d.peekByte(); b == '-' {
		sb.WriteByte(b)
		d.discard(1)
	}
	if err := readDigits(); err != nil {
		return err
	}
	if b, err := d.peekByte(); err == nil && b == '.' {
		isFloat = true
		sb.WriteByte(b)
		d.discard(1)
		if err := readDigits(); err != nil {
			return err
		}
	}
	if b, err := d.peekByte(); err == nil && (b == 'e' || b == 'E') {
		isFloat = true
		sb.WriteByte(b)
		d.discard(1)
		if b, err := d.peekByte(); err == nil && (b == '+' || b == '-') {
			sb.WriteByte(b)
			d.discard(1)
		}
		if err := readDigits(); err != nil {
			return err
		}
	}

	if sb.Len() == 0 {
		return d.syntaxErrorf("malformed number")
	}

	if isFloat {
		f, err := strconv.ParseFloat(sb.String(), 64)
		if err != nil {
			return d.syntaxErrorf("malformed number %q", sb.String())
		}
		if !v.SetNumber(f) {
			return ErrAborted
		}
		return nil
	}

	i, err := strconv.ParseInt(sb.String(), 10, 64)
	if err != nil {
		// overflow of int64: fall back to float, same as a decimal value.
		f, ferr := strconv.ParseFloat(sb.String(), 64)
		if ferr != nil {
			return d.syntaxErrorf("malformed number %q", sb.String())
		}
		if !v.SetNumber(f) {
			return ErrAborted
		}
		return nil
	}
	if !v.SetInt64(i) {
		return ErrAborted
	}
	return nil
}

func (d *Decoder) skipSpace() error {
	for {
		b, err := d.peekByte()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			return nil
		}
		d.discard(1)
	}
}

func (d *Decoder) peekByte() (byte, error) {
	buf, err := d.r.Peek(1)
	if err != nil {
		if errors.Is(err, io.EOF) || err == bufio.ErrBufferFull {
			return 0, io.EOF
		}
		return 0, err
	}
	return buf[0], nil
}

func (d *Decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	d.pos++
	return b, nil
}

func (d *Decoder) discard(n int) {
	_, _ = d.r.Discard(n)
	d.pos += int64(n)
}

func (d *Decoder) expect(want byte) error {
	b, err := d.readByte()
	if err != nil {
		return err
	}
	if b != want {
		return d.syntaxErrorf("expected %q, got %q", want, b)
	}
	return nil
}

func (d *Decoder) syntaxErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("jsontok: %s (offset %d)", fmt.Sprintf(format, args...), d.pos)
}
