// Package ctext decodes X11 compound text (ISO 2022 based) into UTF-8.
//
// This package only walks the ISO 2022 designation structure; the actual
// charset conversion is delegated to golang.org/x/text decoders. Coverage
// matches what input-method servers emit in practice: ASCII, the ISO 8859
// right-half sets, the common EUC multibyte sets (JIS X 0208, GB 2312,
// KS C 5601), and the UTF-8 extension segment.
package ctext

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const esc = 0x1b

// ErrBadText is returned for byte sequences that are not valid compound
// text, including designations this codec does not cover.
var ErrBadText = errors.New("ctext: invalid compound text")

// grSets maps the final byte of an "ESC - F" designation to the 96-character
// right-half set it selects.
var grSets = map[byte]*charmap.Charmap{
	'A': charmap.ISO8859_1,
	'B': charmap.ISO8859_2,
	'C': charmap.ISO8859_3,
	'D': charmap.ISO8859_4,
	'F': charmap.ISO8859_7,
	'G': charmap.ISO8859_6,
	'H': charmap.ISO8859_8,
	'L': charmap.ISO8859_5,
	'M': charmap.ISO8859_9,
}

// mbSets maps the final byte of an "ESC $ ( F" designation to the decoder
// for the corresponding EUC encoding. Compound text carries the 94x94 sets
// as 7-bit pairs; shifting both bytes into the right half yields EUC, which
// x/text decodes.
var mbSets = map[byte]encoding.Encoding{
	'A': simplifiedchinese.GBK, // GB 2312
	'B': japanese.EUCJP,        // JIS X 0208
	'C': korean.EUCKR,          // KS C 5601
}

// Codec is the default compound-text codec. It satisfies the session's
// codec collaborator interface.
type Codec struct{}

func New() *Codec { return &Codec{} }

// Init is a no-op; all table state lives in x/text.
func (c *Codec) Init() {}

func (c *Codec) CompoundTextToUTF8(data []byte) ([]byte, error) {
	return Decode(data)
}

// Decode converts a compound-text byte sequence to UTF-8.
func Decode(data []byte) ([]byte, error) {
	d := decoder{in: data, gr: charmap.ISO8859_1}
	return d.run()
}

type decoder struct {
	in  []byte
	out []byte
	pos int

	gr       *charmap.Charmap  // current right-half set
	mb       encoding.Encoding // current multibyte G0 set, nil for ASCII
	utf8Mode bool
}

func (d *decoder) run() ([]byte, error) {
	for d.pos < len(d.in) {
		b := d.in[d.pos]
		switch {
		case b == esc:
			if err := d.escape(); err != nil {
				return nil, err
			}
		case d.utf8Mode:
			d.out = append(d.out, b)
			d.pos++
		case d.mb != nil && b >= 0x21 && b <= 0x7e:
			if err := d.multibyteRun(); err != nil {
				return nil, err
			}
		case b < 0x80:
			d.out = append(d.out, b)
			d.pos++
		default:
			if err := d.rightHalfRun(); err != nil {
				return nil, err
			}
		}
	}
	return d.out, nil
}

// escape consumes one designation sequence starting at the current ESC.
func (d *decoder) escape() error {
	rest := d.in[d.pos+1:]
	if len(rest) < 2 {
		return fmt.Errorf("%w: truncated escape", ErrBadText)
	}
	switch rest[0] {
	case '(': // 94-character set into G0
		if f := rest[1]; f != 'B' && f != 'J' {
			return fmt.Errorf("%w: unsupported G0 set %q", ErrBadText, f)
		}
		d.mb = nil
		d.pos += 3
	case '-': // 96-character set into GR
		cm, ok := grSets[rest[1]]
		if !ok {
			return fmt.Errorf("%w: unsupported GR set %q", ErrBadText, rest[1])
		}
		d.gr = cm
		d.pos += 3
	case '$': // multibyte set into G0
		f := rest[1]
		n := 3
		if f == '(' {
			if len(rest) < 3 {
				return fmt.Errorf("%w: truncated escape", ErrBadText)
			}
			f = rest[2]
			n = 4
		}
		enc, ok := mbSets[f]
		if !ok {
			return fmt.Errorf("%w: unsupported multibyte set %q", ErrBadText, f)
		}
		d.mb = enc
		d.pos += n
	case '%': // standard extension segment
		switch rest[1] {
		case 'G':
			d.utf8Mode = true
		case '@':
			d.utf8Mode = false
		default:
			return fmt.Errorf("%w: unsupported extension %q", ErrBadText, rest[1])
		}
		d.pos += 3
	default:
		return fmt.Errorf("%w: unknown escape %q", ErrBadText, rest[0])
	}
	return nil
}

// multibyteRun decodes a run of 7-bit character pairs in the current G0
// multibyte set.
func (d *decoder) multibyteRun() error {
	start := d.pos
	for d.pos < len(d.in) && d.in[d.pos] >= 0x21 && d.in[d.pos] <= 0x7e {
		d.pos++
	}
	run := d.in[start:d.pos]
	if len(run)%2 != 0 {
		return fmt.Errorf("%w: odd multibyte run", ErrBadText)
	}
	euc := make([]byte, len(run))
	for i, b := range run {
		euc[i] = b | 0x80
	}
	decoded, err := d.mb.NewDecoder().Bytes(euc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadText, err)
	}
	d.out = append(d.out, decoded...)
	return nil
}

// rightHalfRun decodes a run of GR bytes in the current 96-character set.
func (d *decoder) rightHalfRun() error {
	start := d.pos
	for d.pos < len(d.in) && d.in[d.pos] >= 0x80 {
		d.pos++
	}
	decoded, err := d.gr.NewDecoder().Bytes(d.in[start:d.pos])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadText, err)
	}
	d.out = append(d.out, decoded...)
	return nil
}
