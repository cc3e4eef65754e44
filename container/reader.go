package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Reader inflates a container stream written by Writer, presenting it as
// a flat byte stream via Read.
type Reader struct {
	r        io.Reader
	checked  bool
	pending  []byte // inflated bytes from the current block not yet returned
	finished bool
}

// NewReader returns a Reader over r. The magic is verified lazily, on the
// first Read, so that opening a Reader never itself fails on a short or
// empty file.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) checkMagic() error {
	if r.checked {
		return nil
	}
	r.checked = true
	var got [4]byte
	if _, err := io.ReadFull(r.r, got[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.WithStack(ErrTruncated)
		}
		return errors.Wrap(err, "container: reading magic")
	}
	if got != Magic {
		return errors.WithStack(ErrBadMagic)
	}
	return nil
}

func (r *Reader) nextBlock() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.WithStack(ErrTruncated)
		}
		return nil, errors.Wrap(err, "container: reading block length")
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == terminatorLen {
		r.finished = true
		return nil, nil
	}
	compressed := make([]byte, length)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		return nil, errors.WithStack(ErrTruncated)
	}
	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()
	payload, err := ioutil.ReadAll(fr)
	if err != nil {
		return nil, errors.Wrap(err, "container: inflating block")
	}
	return payload, nil
}

// Read implements io.Reader, transparently inflating blocks as needed.
func (r *Reader) Read(p []byte) (int, error) {
	if err := r.checkMagic(); err != nil {
		return 0, err
	}
	for len(r.pending) == 0 {
		if r.finished {
			return 0, io.EOF
		}
		block, err := r.nextBlock()
		if err != nil {
			return 0, err
		}
		r.pending = block
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// ReadAll inflates every remaining block and returns the concatenated
// payload. Useful for the whole-slab reads format.go performs.
func (r *Reader) ReadAll() ([]byte, error) {
	return ioutil.ReadAll(r)
}
