package flow

import (
	"io"
	"os"
	"sync"
)

// ReadResource supplies the source with an ordered byte sequence. ReadNext
// returns the next block of bytes, io.EOF when the resource is exhausted, or
// a resource error. Close releases the resource; it is called exactly once
// by the owning source.
type ReadResource interface {
	ReadNext() ([]byte, error)
	Close() error
}

// WriteResource receives the bytes a sink flushes. Writes are whole-chunk:
// a Write call either persists all of data or fails without the sink
// considering any of it flushed.
type WriteResource interface {
	Write(data []byte) error
	Close() error
}

// FileReadResource reads a file in fixed-size blocks.
type FileReadResource struct {
	f    *os.File
	buf  []byte
	done bool
}

// OpenFileResource opens path for chunked reading.
func OpenFileResource(path string, chunkSize int) (*FileReadResource, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileReadResource{f: f, buf: make([]byte, chunkSize)}, nil
}

// ReadNext returns the next block of up to chunkSize bytes.
func (r *FileReadResource) ReadNext() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	n, err := io.ReadFull(r.f, r.buf)
	if n > 0 {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// Short tail: hand it out now, report EOF on the next call.
			r.done = true
		} else if err != nil {
			return nil, err
		}
		data := make([]byte, n)
		copy(data, r.buf[:n])
		return data, nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	return nil, err
}

// Close closes the underlying file.
func (r *FileReadResource) Close() error { return r.f.Close() }

// FileWriteResource appends chunk data to a file.
type FileWriteResource struct {
	f *os.File
}

// CreateFileResource creates (or truncates) path for writing.
func CreateFileResource(path string) (*FileWriteResource, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriteResource{f: f}, nil
}

// Write persists data to the file.
func (w *FileWriteResource) Write(data []byte) error {
	_, err := w.f.Write(data)
	return err
}

// Close closes the underlying file.
func (w *FileWriteResource) Close() error { return w.f.Close() }

// MemReadResource serves an in-memory byte slice in fixed-size blocks.
type MemReadResource struct {
	data      []byte
	chunkSize int
	off       int
	closed    bool
}

// NewMemReadResource wraps data for chunked reading.
func NewMemReadResource(data []byte, chunkSize int) *MemReadResource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &MemReadResource{data: data, chunkSize: chunkSize}
}

// ReadNext returns the next block of up to chunkSize bytes.
func (r *MemReadResource) ReadNext() ([]byte, error) {
	if r.off >= len(r.data) {
		return nil, io.EOF
	}
	end := r.off + r.chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	block := r.data[r.off:end]
	r.off = end
	return block, nil
}

// Close marks the resource released.
func (r *MemReadResource) Close() error {
	r.closed = true
	return nil
}

// MemWriteResource collects written bytes in memory. It is safe for
// concurrent use: the sink flusher writes while tests or reporters read.
type MemWriteResource struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// NewMemWriteResource returns an empty in-memory write resource.
func NewMemWriteResource() *MemWriteResource {
	return &MemWriteResource{}
}

// Write appends data.
func (w *MemWriteResource) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, data...)
	return nil
}

// Close marks the resource released.
func (w *MemWriteResource) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Bytes returns a copy of everything written so far.
func (w *MemWriteResource) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]byte, len(w.data))
	copy(out, w.data)
	return out
}

// Len returns the number of bytes written so far.
func (w *MemWriteResource) Len() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.data))
}
