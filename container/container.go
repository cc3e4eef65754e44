// Package container implements the block-compressed file format used for
// on-disk index slabs (spec.md §4.10, §6): a magic-prefixed stream of
// independently deflated blocks, each at most 1 MiB of uncompressed
// payload, terminated by a zero-payload sentinel block.
package container

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/grailbio/lrmap/pipeline"
)

// Magic identifies the start of a container stream.
var Magic = [4]byte{'P', 'G', '0', '0'}

// BlockSize is the maximum uncompressed payload per block.
const BlockSize = 1 << 20

// terminatorLen is the on-disk length field marking the end of the stream.
const terminatorLen = 0xFFFFFFFF

// DeflateLevel is the compression level used for every block. Level 1
// favors throughput over ratio, matching the teacher's choice of the
// fastest deflate setting for block-oriented genomic formats.
const DeflateLevel = 1

// Writer serializes length-prefixed deflated blocks to an underlying
// io.Writer.
type Writer struct {
	w        io.Writer
	buf      bytes.Buffer
	wroteHdr bool
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) writeHeader() error {
	if w.wroteHdr {
		return nil
	}
	w.wroteHdr = true
	_, err := w.w.Write(Magic[:])
	return errors.Wrap(err, "container: writing magic")
}

// Write buffers p and flushes complete BlockSize chunks as deflated
// blocks. It satisfies io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.writeHeader(); err != nil {
		return 0, err
	}
	n, _ := w.buf.Write(p)
	for w.buf.Len() >= BlockSize {
		if err := w.flushBlock(w.buf.Next(BlockSize)); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (w *Writer) flushBlock(payload []byte) error {
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, DeflateLevel)
	if err != nil {
		return errors.Wrap(err, "container: creating deflate writer")
	}
	if _, err := fw.Write(payload); err != nil {
		return errors.Wrap(err, "container: deflating block")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, "container: closing deflate writer")
	}
	return w.writeRawBlock(compressed.Bytes())
}

func (w *Writer) writeRawBlock(compressed []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "container: writing block length")
	}
	_, err := w.w.Write(compressed)
	return errors.Wrap(err, "container: writing block body")
}

// Close flushes any buffered remainder as a final block and appends the
// terminator.
func (w *Writer) Close() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	if w.buf.Len() > 0 {
		if err := w.flushBlock(w.buf.Next(w.buf.Len())); err != nil {
			return err
		}
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], terminatorLen)
	_, err := w.w.Write(lenBuf[:])
	return errors.Wrap(err, "container: writing terminator")
}

// WriteBlocks deflates payload (split into BlockSize chunks) across nth
// worker goroutines via package pipeline, then writes the blocks to w in
// original order followed by the terminator. Parallel siblings of
// NewWriter's streaming path are useful when the whole payload is already
// in memory, as it is when serializing a built Index.
func WriteBlocks(w io.Writer, payload []byte, nth int) error {
	cw := NewWriter(w)
	if err := cw.writeHeader(); err != nil {
		return err
	}

	type chunk struct {
		compressed []byte
	}
	// Every block is submitted before the first Next, so the drain queue
	// must be able to hold all of them.
	nBlocks := (len(payload) + BlockSize - 1) / BlockSize
	p := pipeline.New(nth, nBlocks, func(slot int, in interface{}) (interface{}, error) {
		raw := in.([]byte)
		var compressed bytes.Buffer
		fw, err := flate.NewWriter(&compressed, DeflateLevel)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(raw); err != nil {
			return nil, err
		}
		if err := fw.Close(); err != nil {
			return nil, err
		}
		return chunk{compressed: compressed.Bytes()}, nil
	})

	for off := 0; off < len(payload); off += BlockSize {
		end := off + BlockSize
		if end > len(payload) {
			end = len(payload)
		}
		p.Submit(payload[off:end])
	}
	p.Close()

	for i := 0; i < nBlocks; i++ {
		v, ok, err := p.Next()
		if err != nil {
			return errors.Wrap(err, "container: parallel deflate")
		}
		if !ok {
			return errors.New("container: pipeline drained early")
		}
		if err := cw.writeRawBlock(v.(chunk).compressed); err != nil {
			return err
		}
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], terminatorLen)
	_, err := w.Write(lenBuf[:])
	return errors.Wrap(err, "container: writing terminator")
}
