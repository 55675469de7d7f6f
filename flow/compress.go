package flow

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// CompressionLevel controls the speed/ratio tradeoff.
type CompressionLevel int

const (
	CompressionFast    CompressionLevel = iota // Fastest, lower ratio
	CompressionDefault                         // Balanced
	CompressionBest                            // Best ratio, slower
)

// compressorPool reuses LZ4 writers to reduce allocations.
var compressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewWriter(nil)
	},
}

// decompressorPool reuses LZ4 readers.
var decompressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewReader(nil)
	},
}

// Compress compresses data into an LZ4 frame.
func Compress(data []byte, level CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := compressorPool.Get().(*lz4.Writer)
	defer compressorPool.Put(w)

	w.Reset(&buf)

	switch level {
	case CompressionFast:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Fast))
	case CompressionBest:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level9))
	default:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level4))
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: compress: %v", ErrStage, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: compress: %v", ErrStage, err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses an LZ4 frame.
func Decompress(data []byte) ([]byte, error) {
	r := decompressorPool.Get().(*lz4.Reader)
	defer decompressorPool.Put(r)

	r.Reset(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrStage, err)
	}
	return buf.Bytes(), nil
}

// transformStage applies a pure per-chunk transform and forwards the result
// immediately. It buffers nothing itself, so saturation, drained, and
// failure all pass straight through to the next acceptor.
type transformStage struct {
	next Acceptor
	fn   func([]byte) ([]byte, error)
}

// WithCompression returns a stage that LZ4-compresses each chunk.
func WithCompression(level CompressionLevel) StageFunc {
	return func(next Acceptor) Acceptor {
		return &transformStage{
			next: next,
			fn: func(data []byte) ([]byte, error) {
				return Compress(data, level)
			},
		}
	}
}

// WithDecompression returns a stage that reverses WithCompression.
func WithDecompression() StageFunc {
	return func(next Acceptor) Acceptor {
		return &transformStage{next: next, fn: Decompress}
	}
}

func (t *transformStage) Accept(c Chunk) (bool, error) {
	out, err := t.fn(c.Data)
	if err != nil {
		return false, err
	}
	return t.next.Accept(NewChunk(c.Seq, out))
}

func (t *transformStage) Drained() <-chan struct{} { return t.next.Drained() }

func (t *transformStage) Failed() <-chan error { return t.next.Failed() }

func (t *transformStage) Finish() error { return t.next.Finish() }

func (t *transformStage) Abort(err error) { t.next.Abort(err) }
