package fixture

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
)

// openFile opens a cache file for reading, decompressing transparently by
// suffix. Cache files are normally plain, but compressed drops from earlier
// runs stay readable.
func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		r, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedReader{Reader: r, file: f, inner: r}, nil
	case strings.HasSuffix(path, ".zst"):
		r, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		rc := r.IOReadCloser()
		return &wrappedReader{Reader: rc, file: f, inner: rc}, nil
	default:
		return f, nil
	}
}

// createFile creates a fixture output file, compressing by suffix.
func createFile(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		return &wrappedWriter{WriteCloser: gzip.NewWriter(f), file: f}, nil
	case strings.HasSuffix(path, ".zst"):
		w, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &wrappedWriter{WriteCloser: w, file: f}, nil
	default:
		return f, nil
	}
}

type wrappedReader struct {
	io.Reader
	file  *os.File
	inner io.Closer
}

func (r *wrappedReader) Close() error {
	if r.inner != nil {
		r.inner.Close()
	}
	return r.file.Close()
}

type wrappedWriter struct {
	io.WriteCloser
	file *os.File
}

func (w *wrappedWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
