package container

import (
	"bytes"
	"errors"
	"io/ioutil"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	payload := make([]byte, 3*BlockSize+777)
	r.Read(payload)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	n, err := w.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, w.Close())

	got, err := NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteBlocksParallelMatchesSequential(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	payload := make([]byte, 5*BlockSize+123)
	r.Read(payload)

	var seq bytes.Buffer
	w := NewWriter(&seq)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	seqOut, err := NewReader(bytes.NewReader(seq.Bytes())).ReadAll()
	require.NoError(t, err)

	var par bytes.Buffer
	require.NoError(t, WriteBlocks(&par, payload, 4))
	parOut, err := NewReader(bytes.NewReader(par.Bytes())).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, seqOut, parOut)
	assert.Equal(t, payload, parOut)
}

func TestReaderRejectsBadMagic(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("XXXX"))).ReadAll()
	assert.True(t, errors.Is(err, ErrBadMagic))
}

func TestReaderRejectsTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write(bytes.Repeat([]byte{'a'}, 1024))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err = NewReader(bytes.NewReader(truncated)).ReadAll()
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestEmptyPayloadRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())
	got, err := ioutil.ReadAll(NewReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	assert.Empty(t, got)
}
