package vm

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/smartacct/vm/core"
)

// reader is a cursor over an untrusted byte stream. Every multi-byte read
// validates the remaining length first and reports the configured truncation
// error, so callers never index past the buffer.
type reader struct {
	data         []byte
	pos          int
	errTruncated error
}

func newReader(data []byte, errTruncated error) *reader {
	return &reader{data: data, errTruncated: errTruncated}
}

func (r *reader) more() bool {
	return r.pos < len(r.data)
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.errTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) read(n int) ([]byte, error) {
	if len(r.data)-r.pos < n {
		return nil, r.errTruncated
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) readAddress() (core.Address, error) {
	b, err := r.read(core.AddressLength)
	if err != nil {
		return core.Address{}, err
	}
	var addr core.Address
	copy(addr[:], b)
	return addr, nil
}

func (r *reader) readWord() (*uint256.Int, error) {
	b, err := r.read(core.WordLength)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}
