// Package genfile generates bulk test files by writing patterned chunks
// sequentially. It exists to drive the transfer core and deliberately stays
// trivial.
package genfile

import (
	"io"
	"os"
)

// Generate writes size bytes of a deterministic pattern to w in chunkSize
// blocks and returns the byte count written.
func Generate(w io.Writer, size int64, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	block := make([]byte, chunkSize)
	var written int64
	for written < size {
		n := int64(len(block))
		if size-written < n {
			n = size - written
		}
		for i := int64(0); i < n; i++ {
			block[i] = byte((written + i) % 251)
		}
		if _, err := w.Write(block[:n]); err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// GenerateFile creates path and fills it with size patterned bytes.
func GenerateFile(path string, size int64, chunkSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := Generate(f, size, chunkSize); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
