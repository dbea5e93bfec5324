package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxBatchRecords bounds how many records a single frame may announce.
const MaxBatchRecords = 1 << 16

// ErrFrameTooLarge is returned when a frame announces more than MaxBatchRecords.
var ErrFrameTooLarge = fmt.Errorf("%w: batch frame too large", ErrProtocol)

// A batch frame is a big-endian uint32 record count followed by that many
// records, each a big-endian uint16 byte length and the encoded record.

// WriteBatch writes records as one frame.
func WriteBatch(w io.Writer, records []string) error {
	if len(records) > MaxBatchRecords {
		return ErrFrameTooLarge
	}

	bw := bufio.NewWriter(w)
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(records)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	for _, rec := range records {
		if len(rec) > math.MaxUint16 {
			return fmt.Errorf("%w: record of %d bytes", ErrProtocol, len(rec))
		}
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(rec)))
		if _, err := bw.Write(l[:]); err != nil {
			return err
		}
		if _, err := bw.WriteString(rec); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// BatchReader reads successive frames from a stream.
type BatchReader struct {
	r *bufio.Reader

	// BeforeRead, if set, runs before the frame header and before each record
	// is read. Listeners use it to arm per-record read deadlines.
	BeforeRead func() error
}

// NewBatchReader wraps r.
func NewBatchReader(r io.Reader) *BatchReader {
	return &BatchReader{r: bufio.NewReader(r)}
}

// ReadBatch reads the next frame. io.EOF is returned only on a clean end of stream.
func (br *BatchReader) ReadBatch() ([]string, error) {
	if err := br.arm(); err != nil {
		return nil, err
	}

	var hdr [4]byte
	if _, err := io.ReadFull(br.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxBatchRecords {
		return nil, ErrFrameTooLarge
	}

	records := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		if err := br.arm(); err != nil {
			return nil, err
		}

		var l [2]byte
		if _, err := io.ReadFull(br.r, l[:]); err != nil {
			return nil, unexpected(err)
		}
		buf := make([]byte, binary.BigEndian.Uint16(l[:]))
		if _, err := io.ReadFull(br.r, buf); err != nil {
			return nil, unexpected(err)
		}
		records = append(records, string(buf))
	}

	return records, nil
}

func (br *BatchReader) arm() error {
	if br.BeforeRead == nil {
		return nil
	}
	return br.BeforeRead()
}

// unexpected turns a clean EOF inside a frame into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
