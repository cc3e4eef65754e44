package seqio

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const fastaScanBufferInit = 1 << 20

// FastaSource reads FASTA-formatted data as a record Source. It hands back
// a single Batch containing every sequence, since FASTA carries no natural
// sharding boundary; callers that need bounded memory should pre-split
// their input files.
type FastaSource struct {
	r         *bufio.Reader
	closer    io.Closer
	done      bool
	circular  map[string]bool
	preserveComment bool
}

// FastaOpt configures a FastaSource.
type FastaOpt func(*FastaSource)

// OptCircular marks the named sequences as circular references.
func OptCircular(names ...string) FastaOpt {
	return func(f *FastaSource) {
		for _, n := range names {
			f.circular[n] = true
		}
	}
}

// OptPreserveComment keeps text after the first space on a '>' header line,
// stashed as TagBlob (mirroring the SAM "CO" tag convention mentioned in
// spec.md §6) instead of discarding it.
func OptPreserveComment(f *FastaSource) { f.preserveComment = true }

// NewFastaSource opens a FASTA record source over r. rc, if non-nil, is
// closed by Close.
func NewFastaSource(r io.Reader, rc io.Closer, opts ...FastaOpt) *FastaSource {
	f := &FastaSource{
		r:        bufio.NewReaderSize(r, fastaScanBufferInit),
		closer:   rc,
		circular: make(map[string]bool),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Read implements Source. It returns the whole file as one Batch, then io.EOF.
func (f *FastaSource) Read() (Batch, error) {
	if f.done {
		return Batch{}, io.EOF
	}
	f.done = true

	var (
		batch   Batch
		name    string
		comment string
		seq     strings.Builder
		started bool
	)
	flush := func() {
		if !started {
			return
		}
		rec := Record{
			Name:     name,
			Seq:      EncodeASCII(seq.String()),
			Circular: f.circular[name],
		}
		if f.preserveComment && comment != "" {
			rec.TagBlob = []byte("CO:Z:" + comment)
		}
		batch.Seqs = append(batch.Seqs, rec)
		seq.Reset()
	}

	for {
		line, err := f.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if len(line) > 0 {
			if line[0] == '>' {
				flush()
				started = true
				header := line[1:]
				if sp := strings.IndexByte(header, ' '); sp >= 0 {
					name, comment = header[:sp], header[sp+1:]
				} else {
					name, comment = header, ""
				}
			} else {
				seq.WriteString(line)
			}
		}
		if err != nil {
			if err == io.EOF {
				flush()
				break
			}
			return Batch{}, errors.Wrap(err, "seqio: reading FASTA")
		}
	}
	if len(batch.Seqs) == 0 {
		return Batch{}, io.EOF
	}
	return batch, nil
}

// Close implements Source.
func (f *FastaSource) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}
