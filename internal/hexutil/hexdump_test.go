package hexutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDumpSingleLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, 0, []byte("ABCDEFGH")))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "0x00000000 | "))
	require.Contains(t, out, "ABCDEFGH")
	require.Contains(t, out, "01000001") // 'A' in binary
}

func TestDumpNonPrintableBytesAreDotted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, 0, []byte{0x00, 0x01, 'a', 0x7f}))

	require.Contains(t, buf.String(), "..a.")
}

func TestDumpPartialLastLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, 0x10, []byte{1, 2, 3}))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "0x00000010 | "))
	require.Equal(t, 1, strings.Count(out, "\n"))
}

func TestDumpMultipleLinesAdvancesOffset(t *testing.T) {
	var buf bytes.Buffer
	data := make([]byte, 16)
	require.NoError(t, Dump(&buf, 0, data))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "0x00000000"))
	require.True(t, strings.HasPrefix(lines[1], "0x00000008"))
}
