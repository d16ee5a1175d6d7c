package charset

import (
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"UTF-8", "utf-8", "ISO-8859-1", "UTF-16BE", "Shift_JIS"} {
		enc, err := Lookup(name)
		require.NoError(t, err, name)
		require.NotNil(t, enc, name)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("no-such-charset")
	assert.ErrorIs(t, err, apperrors.ErrUnknownCharset)

	_, err = Lookup("  ")
	assert.ErrorIs(t, err, apperrors.ErrUnknownCharset)
}

func TestEncodeDecode(t *testing.T) {
	utf8Enc, err := Lookup("UTF-8")
	require.NoError(t, err)
	latin1, err := Lookup("ISO-8859-1")
	require.NoError(t, err)

	b, err := Encode(utf8Enc, "héllo")
	require.NoError(t, err)
	assert.Equal(t, []byte("h\xc3\xa9llo"), b)

	b, err = Encode(latin1, "héllo")
	require.NoError(t, err)
	assert.Equal(t, []byte("h\xe9llo"), b)

	s, err := Decode(latin1, []byte("h\xe9llo"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	_, err = Encode(latin1, "日本")
	assert.Error(t, err)

	_, err = Decode(utf8Enc, []byte{0xff, 0xfe})
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	utf8Enc, err := Lookup("UTF-8")
	require.NoError(t, err)
	latin1, err := Lookup("ISO-8859-1")
	require.NoError(t, err)

	assert.True(t, Valid(utf8Enc, []byte("plain ascii\n")))
	assert.True(t, Valid(utf8Enc, []byte("日本語\n")))
	assert.False(t, Valid(utf8Enc, []byte("bad \xff byte")))
	assert.True(t, Valid(latin1, []byte("caf\xe9\n")))
}

func TestNewlineAndFragments(t *testing.T) {
	utf8Enc, err := Lookup("UTF-8")
	require.NoError(t, err)
	utf16be, err := Lookup("UTF-16BE")
	require.NoError(t, err)

	assert.Equal(t, []byte{'\n'}, Newline(utf8Enc))
	assert.Equal(t, []byte{0x00, 0x0a}, Newline(utf16be))

	frag, err := EncodeFragment(utf16be, "ab")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 'a', 0x00, 'b'}, frag)
}

func TestTrimIncomplete(t *testing.T) {
	utf8Enc, err := Lookup("UTF-8")
	require.NoError(t, err)
	latin1, err := Lookup("ISO-8859-1")
	require.NoError(t, err)

	full := []byte("ab日")
	assert.Equal(t, full, TrimIncomplete(utf8Enc, full))
	assert.Equal(t, []byte("ab"), TrimIncomplete(utf8Enc, full[:len(full)-1]))
	assert.Equal(t, []byte("ab"), TrimIncomplete(utf8Enc, full[:len(full)-2]))
	assert.Equal(t, []byte("abc"), TrimIncomplete(utf8Enc, []byte("abc")))
	assert.Equal(t, full[:3], TrimIncomplete(latin1, full[:3]))
	assert.Empty(t, TrimIncomplete(utf8Enc, nil))
}

func TestDecodeLenient(t *testing.T) {
	utf8Enc, err := Lookup("UTF-8")
	require.NoError(t, err)
	latin1, err := Lookup("ISO-8859-1")
	require.NoError(t, err)

	s, err := DecodeLenient(utf8Enc, []byte("caf\xe9 ok\n"))
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD ok\n", s)

	s, err = DecodeLenient(utf8Enc, []byte("clean"))
	require.NoError(t, err)
	assert.Equal(t, "clean", s)

	s, err = DecodeLenient(latin1, []byte("caf\xe9"))
	require.NoError(t, err)
	assert.Equal(t, "café", s)
}
