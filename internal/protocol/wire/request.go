package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	tagLen    = 1
	countLen  = 4
	lengthLen = 4
)

// Request is one operation plus its opaque operands.
type Request struct {
	Op    Op
	Key   []byte
	Value []byte
}

// Limits bounds operand sizes accepted before any I/O happens. Zero disables a bound.
type Limits struct {
	MaxKeyBytes   int
	MaxValueBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxKeyBytes:   64 * 1024,
		MaxValueBytes: 8 * 1024 * 1024,
	}
}

// Validate checks operand sizes against limits.
func Validate(req Request, limits Limits) error {
	if !req.Op.Valid() {
		return fmt.Errorf("%w: op=%d", ErrUnexpectedTag, uint8(req.Op))
	}
	if limits.MaxKeyBytes > 0 && len(req.Key) > limits.MaxKeyBytes {
		return fmt.Errorf("%w: key %d > %d", ErrOperandTooLarge, len(req.Key), limits.MaxKeyBytes)
	}
	if limits.MaxValueBytes > 0 && len(req.Value) > limits.MaxValueBytes {
		return fmt.Errorf("%w: value %d > %d", ErrOperandTooLarge, len(req.Value), limits.MaxValueBytes)
	}
	return nil
}

func (r Request) operands() [][]byte {
	switch r.Op.Operands() {
	case 1:
		return [][]byte{r.Key}
	case 2:
		return [][]byte{r.Key, r.Value}
	default:
		return nil
	}
}

// EncodeRequest serializes req as [u8 op][u32 count]{[u32 len][bytes]}.
func EncodeRequest(req Request) []byte {
	ops := req.operands()
	size := tagLen + countLen
	for _, b := range ops {
		size += lengthLen + len(b)
	}
	buf := make([]byte, size)
	buf[0] = byte(req.Op)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(ops)))
	offset := tagLen + countLen
	for _, b := range ops {
		binary.BigEndian.PutUint32(buf[offset:offset+lengthLen], uint32(len(b)))
		offset += lengthLen
		offset += copy(buf[offset:], b)
	}
	return buf
}

// DecodeRequest parses a request body. Operands are copied out of body.
func DecodeRequest(body []byte) (Request, error) {
	if len(body) < tagLen+countLen {
		return Request{}, decodeErr(0, ErrTruncated)
	}
	op := Op(body[0])
	if !op.Valid() {
		return Request{}, decodeErr(op, fmt.Errorf("%w: op=%d", ErrUnexpectedTag, body[0]))
	}
	count := binary.BigEndian.Uint32(body[1:5])
	if count != uint32(op.Operands()) {
		return Request{}, decodeErr(op, fmt.Errorf("%w: got %d want %d", ErrOperandCount, count, op.Operands()))
	}
	operands := make([][]byte, 0, count)
	offset := tagLen + countLen
	for i := uint32(0); i < count; i++ {
		b, next, err := readOperand(body, offset)
		if err != nil {
			return Request{}, decodeErr(op, err)
		}
		operands = append(operands, b)
		offset = next
	}
	if offset != len(body) {
		return Request{}, decodeErr(op, fmt.Errorf("%w: %d trailing bytes", ErrCorruptLength, len(body)-offset))
	}

	req := Request{Op: op}
	if len(operands) > 0 {
		req.Key = operands[0]
	}
	if len(operands) > 1 {
		req.Value = operands[1]
	}
	return req, nil
}

// readOperand reads one [u32 len][bytes] operand at offset and returns a copy.
func readOperand(body []byte, offset int) ([]byte, int, error) {
	if len(body)-offset < lengthLen {
		return nil, 0, ErrTruncated
	}
	l := binary.BigEndian.Uint32(body[offset : offset+lengthLen])
	offset += lengthLen
	if uint64(l) > uint64(len(body)-offset) {
		return nil, 0, fmt.Errorf("%w: declared %d, %d available", ErrTruncated, l, len(body)-offset)
	}
	val := make([]byte, l)
	copy(val, body[offset:offset+int(l)])
	return val, offset + int(l), nil
}
