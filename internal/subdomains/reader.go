package subdomains

import (
	"errors"
	"io"
)

var errTooLarge = errors.New("transfer exceeded size cap")

// boundedReader counts cumulative bytes and fails the read that pushes the
// total past the cap, invoking abort to cancel the underlying transfer. It
// deliberately owns the byte count instead of trusting content-length or any
// HTTP client's native limiting.
type boundedReader struct {
	r     io.Reader
	limit int64
	read  int64
	abort func()
}

func newBoundedReader(r io.Reader, limit int64, abort func()) *boundedReader {
	return &boundedReader{r: r, limit: limit, abort: abort}
}

func (b *boundedReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if b.read > b.limit {
		if b.abort != nil {
			b.abort()
		}
		return n, errTooLarge
	}
	return n, err
}

func errOversize(err error) bool {
	return errors.Is(err, errTooLarge)
}
