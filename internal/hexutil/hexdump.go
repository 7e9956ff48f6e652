// Package hexutil renders a byte range as 8-bytes-per-line binary with
// an ASCII sidecar, for inspecting an Arena's backing buffer.
package hexutil

import (
	"fmt"
	"io"
)

const bytesPerLine = 8

// Dump writes data in 8-byte lines to w: an offset column (relative to
// base), each byte as 8 binary digits, and an ASCII sidecar in which
// every byte outside 0x21..0x7e (space included) is rendered as '.'.
func Dump(w io.Writer, base uint64, data []byte) error {
	for start := 0; start < len(data); start += bytesPerLine {
		end := start + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]

		if _, err := fmt.Fprintf(w, "0x%08x | ", base+uint64(start)); err != nil {
			return err
		}
		printable := make([]byte, 0, bytesPerLine)
		for _, b := range chunk {
			if _, err := fmt.Fprintf(w, "%08b ", b); err != nil {
				return err
			}
			if isPrintableASCII(b) {
				printable = append(printable, b)
			} else {
				printable = append(printable, '.')
			}
		}
		for i := len(chunk); i < bytesPerLine; i++ {
			if _, err := io.WriteString(w, "         "); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " | %s\n", printable); err != nil {
			return err
		}
	}
	return nil
}

func isPrintableASCII(b byte) bool {
	return b > 0x20 && b < 0x7f
}
