package mmindex

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/grailbio/lrmap/container"
)

// magic identifies the on-disk index slab format (spec.md §6).
const magic = uint32(0x0849414D)

// Sentinel errors for Load, matching the error-handling design in §8.
var (
	ErrBadMagic  = errors.New("mmindex: bad magic")
	ErrTruncated = errors.New("mmindex: truncated index file")
)

// header is the fixed-size slab header preceding the bucket array.
type header struct {
	Magic    uint32
	B, W, K  uint32
	NOcc     uint32
	Occ      [MaxFrqCnt]uint32
	NSeq     uint32
	NBuckets uint32
}

// Save serializes idx to w as a container-framed slab: header, then one
// record per bucket (entry count, followed by that many (key, cellValue)
// pairs and the bucket's posting array), then the reference metadata
// table.
func (idx *Index) Save(w io.Writer) error {
	var buf bytes.Buffer
	hdr := header{
		Magic:    magic,
		B:        idx.b,
		W:        idx.w,
		K:        idx.k,
		NOcc:     uint32(idx.nOcc),
		NSeq:     uint32(len(idx.seqs)),
		NBuckets: uint32(len(idx.buckets)),
	}
	copy(hdr.Occ[:], idx.occ[:])
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "mmindex: encoding header")
	}

	for _, bkt := range idx.buckets {
		if bkt.table == nil {
			writeU32(&buf, 0)
			writeU32(&buf, 0)
			continue
		}
		keys, vals := bkt.table.liveEntries()
		writeU32(&buf, uint32(len(keys)))
		for i := range keys {
			writeU64(&buf, keys[i])
			writeU64(&buf, vals[i])
		}
		writeU32(&buf, uint32(len(bkt.postings)))
		for _, p := range bkt.postings {
			writeU64(&buf, uint64(p))
		}
	}

	for _, s := range idx.seqs {
		writeU32(&buf, uint32(len(s.Name)))
		buf.WriteString(s.Name)
		writeU32(&buf, s.Len)
		if s.Circular {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	return container.WriteBlocks(w, buf.Bytes(), 1)
}

// Load reads an Index previously written by Save.
func Load(r io.Reader) (*Index, error) {
	raw, err := container.NewReader(r).ReadAll()
	if err != nil {
		if errors.Is(err, container.ErrBadMagic) {
			return nil, errors.WithStack(ErrBadMagic)
		}
		if errors.Is(err, container.ErrTruncated) {
			return nil, errors.WithStack(ErrTruncated)
		}
		return nil, err
	}

	br := bytes.NewReader(raw)
	var hdr header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.WithStack(ErrTruncated)
	}
	if hdr.Magic != magic {
		return nil, errors.WithStack(ErrBadMagic)
	}

	idx := &Index{
		w:    hdr.W,
		k:    hdr.K,
		b:    hdr.B,
		mask: (uint64(1) << hdr.B) - 1,
		nOcc: int(hdr.NOcc),
	}
	copy(idx.occ[:], hdr.Occ[:])

	idx.buckets = make([]bucket, hdr.NBuckets)
	for bi := range idx.buckets {
		nEntries, err := readU32(br)
		if err != nil {
			return nil, err
		}
		if nEntries == 0 {
			if _, err := readU32(br); err != nil { // posting-array count, always 0 here
				return nil, err
			}
			continue
		}
		tbl := newRobinhood(int(nEntries))
		for i := uint32(0); i < nEntries; i++ {
			key, err := readU64(br)
			if err != nil {
				return nil, err
			}
			val, err := readU64(br)
			if err != nil {
				return nil, err
			}
			tbl.Put(key, val)
		}
		nPostings, err := readU32(br)
		if err != nil {
			return nil, err
		}
		postings := make([]Posting, nPostings)
		for i := range postings {
			v, err := readU64(br)
			if err != nil {
				return nil, err
			}
			postings[i] = Posting(v)
		}
		idx.buckets[bi] = bucket{table: tbl, postings: postings}
	}

	idx.seqs = make([]RefSeq, hdr.NSeq)
	for i := range idx.seqs {
		nameLen, err := readU32(br)
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, errors.WithStack(ErrTruncated)
		}
		l, err := readU32(br)
		if err != nil {
			return nil, err
		}
		circByte, err := br.ReadByte()
		if err != nil {
			return nil, errors.WithStack(ErrTruncated)
		}
		idx.seqs[i] = RefSeq{ID: int32(i), Name: string(name), Len: l, Circular: circByte != 0}
	}

	return idx, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.WithStack(ErrTruncated)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.WithStack(ErrTruncated)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
