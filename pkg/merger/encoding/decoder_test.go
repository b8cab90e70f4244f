package encoding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnsonice/ILA/pkg/merger/encoding"
)

func TestCharsetDecoder(t *testing.T) {
	t.Run("valid utf-8 passes through", func(t *testing.T) {
		d := encoding.NewCharsetDecoder("")
		in := []byte(`[{"id":"a1","title":"économie"}]`)
		out, name, err := d.DecodeToUTF8(in)
		require.NoError(t, err)
		assert.Equal(t, "utf-8", name)
		assert.Equal(t, in, out)
	})

	t.Run("utf-8 BOM stripped", func(t *testing.T) {
		d := encoding.NewCharsetDecoder("")
		in := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[]`)...)
		out, name, err := d.DecodeToUTF8(in)
		require.NoError(t, err)
		assert.Equal(t, "utf-8", name)
		assert.Equal(t, []byte(`[]`), out)
	})

	t.Run("configured fallback encoding decodes latin text", func(t *testing.T) {
		d := encoding.NewCharsetDecoder("windows-1252")
		// "économie" with é as 0xE9, invalid as UTF-8.
		in := []byte{'{', '"', 0xE9, 'c', 'o', '"', ':', '1', '}'}
		out, name, err := d.DecodeToUTF8(in)
		require.NoError(t, err)
		assert.Equal(t, "windows-1252", name)
		assert.Contains(t, string(out), "éco")
	})

	t.Run("detection used when no fallback configured", func(t *testing.T) {
		d := encoding.NewCharsetDecoder("")
		in := []byte{'a', 0xE9, 'b'}
		out, name, err := d.DecodeToUTF8(in)
		require.NoError(t, err)
		assert.NotEmpty(t, name)
		assert.NotEmpty(t, out)
	})

	t.Run("unknown configured encoding falls back to detection", func(t *testing.T) {
		d := encoding.NewCharsetDecoder("no-such-encoding")
		in := []byte{'a', 0xE9, 'b'}
		out, _, err := d.DecodeToUTF8(in)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	})
}
