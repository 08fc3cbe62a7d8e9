package ctext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeASCII(t *testing.T) {
	out, err := Decode([]byte("plain ascii text\n"))
	require.NoError(t, err)
	assert.Equal(t, "plain ascii text\n", string(out))
}

func TestDecodeLatin1Default(t *testing.T) {
	// GR defaults to the Latin-1 right half with no designation at all.
	out, err := Decode([]byte("caf\xe9 \xfcber"))
	require.NoError(t, err)
	assert.Equal(t, "café über", string(out))
}

func TestDecodeCyrillic(t *testing.T) {
	// ESC - L designates ISO 8859-5 into GR. "да" is 0xD4 0xD0 there.
	out, err := Decode([]byte("\x1b-Lok: \xd4\xd0"))
	require.NoError(t, err)
	assert.Equal(t, "ok: да", string(out))
}

func TestDecodeJISX0208(t *testing.T) {
	// ESC $ ( B designates JIS X 0208; 0x24 0x22 is "あ".
	out, err := Decode([]byte("\x1b$(B\x24\x22\x1b(Bok"))
	require.NoError(t, err)
	assert.Equal(t, "あok", string(out))

	// Older two-byte designation form.
	out, err = Decode([]byte("\x1b$B\x24\x22"))
	require.NoError(t, err)
	assert.Equal(t, "あ", string(out))
}

func TestDecodeUTF8Segment(t *testing.T) {
	out, err := Decode([]byte("\x1b%Gnaïve → ok\x1b%@!"))
	require.NoError(t, err)
	assert.Equal(t, "naïve → ok!", string(out))
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string][]byte{
		"unknown escape":     []byte("\x1bz"),
		"truncated escape":   []byte("abc\x1b"),
		"unsupported GR set": []byte("\x1b-Z\xa1"),
		"unsupported mb set": []byte("\x1b$(Z"),
		"odd multibyte run":  []byte("\x1b$(B\x24"),
		"unknown extension":  []byte("\x1b%X"),
	}
	for name, in := range cases {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrBadText, name)
	}
}

func TestCodecInterface(t *testing.T) {
	c := New()
	c.Init()
	out, err := c.CompoundTextToUTF8([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}
