package fs

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/aretw0/dlog/pkg/core"
)

// Record layout, big-endian:
//
//	magic   uint16  0xD106
//	length  uint32  payload length
//	crc     uint32  CRC-32C of payload
//	payload []byte  JSON encoded core.Entry
const (
	recordMagic = 0xD106
	headerSize  = 10

	// MaxPayloadSize bounds a single record. Larger length fields are
	// treated as corruption rather than allocated.
	MaxPayloadSize = 16 << 20
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrTruncated reports input that ends in the middle of a record.
// It matches core.ErrCorrupt as well.
var ErrTruncated = fmt.Errorf("%w: truncated record", core.ErrCorrupt)

// EncodeRecord serializes an entry into a self-delimiting record. It
// refuses entries DecodeRecord would reject and stores CreatedAt in UTC.
func EncodeRecord(e core.Entry) ([]byte, error) {
	if e.ID == 0 {
		return nil, &core.ValidationError{Field: "id", Reason: "must be assigned"}
	}
	if err := (core.WriteRequest{Directory: e.Directory, Message: e.Message}).Validate(); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()

	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry %d: %w", e.ID, err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encode entry %d: payload of %d bytes exceeds %d", e.ID, len(payload), MaxPayloadSize)
	}

	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], recordMagic)
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[6:10], crc32Castagnoli(payload))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// DecodeRecord decodes the record at the start of b and returns it along
// with the number of bytes it occupies. Input shorter than the record it
// announces yields ErrTruncated; anything else malformed yields core.ErrCorrupt.
func DecodeRecord(b []byte) (core.Entry, int, error) {
	if len(b) < headerSize {
		if len(b) >= 2 && binary.BigEndian.Uint16(b) != recordMagic {
			return core.Entry{}, 0, errBadMagic
		}
		return core.Entry{}, 0, ErrTruncated
	}

	length, sum, err := parseHeader(b[:headerSize])
	if err != nil {
		return core.Entry{}, 0, err
	}
	if len(b) < headerSize+length {
		return core.Entry{}, 0, ErrTruncated
	}

	e, err := decodePayload(b[headerSize:headerSize+length], sum)
	if err != nil {
		return core.Entry{}, 0, err
	}
	return e, headerSize + length, nil
}

var errBadMagic = fmt.Errorf("%w: bad record magic", core.ErrCorrupt)

func parseHeader(h []byte) (length int, sum uint32, err error) {
	if binary.BigEndian.Uint16(h[0:2]) != recordMagic {
		return 0, 0, errBadMagic
	}
	n := binary.BigEndian.Uint32(h[2:6])
	if n > MaxPayloadSize {
		return 0, 0, fmt.Errorf("%w: record length %d exceeds %d", core.ErrCorrupt, n, MaxPayloadSize)
	}
	return int(n), binary.BigEndian.Uint32(h[6:10]), nil
}

func decodePayload(payload []byte, sum uint32) (core.Entry, error) {
	if got := crc32Castagnoli(payload); got != sum {
		return core.Entry{}, fmt.Errorf("%w: checksum mismatch (want %08x, got %08x)", core.ErrCorrupt, sum, got)
	}

	var e core.Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	if e.ID == 0 {
		return core.Entry{}, fmt.Errorf("%w: record without id", core.ErrCorrupt)
	}
	if err := (core.WriteRequest{Directory: e.Directory, Message: e.Message}).Validate(); err != nil {
		return core.Entry{}, fmt.Errorf("%w: entry %d: %v", core.ErrCorrupt, e.ID, err)
	}
	return e, nil
}

// RecordReader decodes a concatenated stream of records.
type RecordReader struct {
	r      *bufio.Reader
	offset int64
	count  int
}

// NewRecordReader reads records from r.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: bufio.NewReader(r)}
}

// Next returns the next entry. It returns io.EOF at a clean end of stream,
// ErrTruncated when the stream stops inside a record, and a core.ErrCorrupt
// error for anything else.
func (rr *RecordReader) Next() (core.Entry, error) {
	var h [headerSize]byte
	if n, err := io.ReadFull(rr.r, h[:]); err != nil {
		if err == io.EOF {
			return core.Entry{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			if n >= 2 && binary.BigEndian.Uint16(h[:2]) != recordMagic {
				return core.Entry{}, errBadMagic
			}
			return core.Entry{}, ErrTruncated
		}
		return core.Entry{}, err
	}

	length, sum, err := parseHeader(h[:])
	if err != nil {
		return core.Entry{}, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(rr.r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.Entry{}, ErrTruncated
		}
		return core.Entry{}, err
	}

	e, err := decodePayload(payload, sum)
	if err != nil {
		return core.Entry{}, err
	}

	rr.offset += int64(headerSize + length)
	rr.count++
	return e, nil
}

// Offset is the number of bytes consumed by successfully decoded records.
func (rr *RecordReader) Offset() int64 {
	return rr.offset
}

// Count is the number of records decoded so far.
func (rr *RecordReader) Count() int {
	return rr.count
}

// findRecord returns the offset of the first complete, valid record in b
// starting at or after from, or -1 if there is none.
func findRecord(b []byte, from int) int {
	for i := from; i+headerSize <= len(b); i++ {
		if binary.BigEndian.Uint16(b[i:]) != recordMagic {
			continue
		}
		if _, _, err := DecodeRecord(b[i:]); err == nil {
			return i
		}
	}
	return -1
}

func crc32Castagnoli(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}
