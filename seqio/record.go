// Package seqio defines the record-source boundary this module consumes:
// a minimal concrete FASTA reader plus the interfaces a caller would
// implement for FASTQ or BAM. Full FASTQ/BAM parsing, quality-string state
// machines, and BAM optional-tag filtering are out of scope for this
// module (see spec.md §1) and are left as an external collaborator.
package seqio

import (
	"github.com/grailbio/base/unsafe"

	"github.com/grailbio/lrmap/sketch"
)

// Record is one sequence (reference or query read). Seq is 2-bit/4-bit
// encoded using the sketch package's base codes (0..3, 4 for N); length is
// bounded by 2^31 per the data model.
type Record struct {
	Name     string
	Seq      []byte
	Qual     []byte // optional; nil if absent
	TagBlob  []byte // optional SAM-style auxiliary tag blob, opaque here
	Circular bool
}

// Batch is a group of records read together, the unit a Source hands to
// the pipeline. Base is the 0-based insertion-order index of Batch.Seqs[0].
type Batch struct {
	Base int
	Seqs []Record
}

// Source is the record-source contract (§6): something that produces
// batches of sequence records, in order, until exhausted.
type Source interface {
	// Read returns the next batch, io.EOF when the source is exhausted, or
	// a non-nil error if the underlying input cannot be read or parsed.
	Read() (Batch, error)
	Close() error
}

// EncodeASCII converts an ASCII nucleotide string to the 2-bit/4-bit base
// codes Sketch and the index expect. Bytes outside {A,C,G,T,a,c,g,t} become
// sketch.BaseN.
func EncodeASCII(s string) []byte {
	raw := unsafe.StringToBytes(s) // no copy; read-only below
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = encodeByte(b)
	}
	return out
}

func encodeByte(b byte) byte {
	switch b {
	case 'A', 'a':
		return sketch.BaseA
	case 'C', 'c':
		return sketch.BaseC
	case 'G', 'g':
		return sketch.BaseG
	case 'T', 't':
		return sketch.BaseT
	default:
		return sketch.BaseN
	}
}

// complementOf mirrors the sketch package's strand-complement table so
// callers needing the reverse complement of a base-coded sequence (DP
// extension against a minus-strand chain) don't have to round-trip
// through ASCII.
var complementOf = [5]byte{sketch.BaseT, sketch.BaseG, sketch.BaseC, sketch.BaseA, sketch.BaseN}

// RevComp returns the reverse complement of a base-coded sequence, via a
// table-lookup two-pointer pass over (dst, src).
func RevComp(seq []byte) []byte {
	out := make([]byte, len(seq))
	nByte := len(seq)
	for idx, invIdx := 0, nByte-1; idx != nByte; idx, invIdx = idx+1, invIdx-1 {
		out[idx] = complement(seq[invIdx])
	}
	return out
}

func complement(b byte) byte {
	if int(b) < len(complementOf) {
		return complementOf[b]
	}
	return sketch.BaseN
}

var decodeTable = [5]byte{'A', 'C', 'G', 'T', 'N'}

// DecodeASCII is the inverse of EncodeASCII, used by tests and by adapters
// that need to hand bases back to an external DP engine as ASCII.
func DecodeASCII(codes []byte) string {
	out := make([]byte, len(codes))
	for i, c := range codes {
		if int(c) < len(decodeTable) {
			out[i] = decodeTable[c]
		} else {
			out[i] = 'N'
		}
	}
	return unsafe.BytesToString(out) // out is never written to again
}
