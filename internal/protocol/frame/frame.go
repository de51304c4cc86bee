package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic     uint32 = 0x4B564C31 // "KVL1"
	Version   uint8  = 1
	HeaderLen        = 20

	FlagIsResponse uint16 = 0x0001
)

var (
	ErrShortHeader        = errors.New("frame: short header")
	ErrShortBody          = errors.New("frame: short body")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrBodyTooLarge       = errors.New("frame: body too large")
)

// Header is the fixed wire header.
type Header struct {
	Magic     uint32
	Version   uint8
	Op        uint8
	Flags     uint16
	MessageID uint64
	BodyLen   uint32
}

// IsResponse reports whether the response flag is set.
func (h Header) IsResponse() bool {
	return h.Flags&FlagIsResponse != 0
}

// Frame is one complete wire message.
type Frame struct {
	Header Header
	Body   []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxBodyBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes: 16 * 1024 * 1024,
	}
}

// ReadFrame reads exactly one frame from r. A stream that ends before the
// header is complete yields ErrShortHeader; one that ends inside the body
// yields ErrShortBody. Both wrap io.ErrUnexpectedEOF or io.EOF.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: %w", ErrShortHeader, err)
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if limits.MaxBodyBytes > 0 && h.BodyLen > limits.MaxBodyBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, h.BodyLen, limits.MaxBodyBytes)
	}

	body := make([]byte, h.BodyLen)
	if h.BodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, fmt.Errorf("%w: %w", ErrShortBody, io.ErrUnexpectedEOF)
			}
			return Frame{}, err
		}
	}
	return Frame{Header: h, Body: body}, nil
}

// AppendFrame encodes f into one contiguous buffer so callers can hand the
// whole frame to a single write loop.
func AppendFrame(dst []byte, f Frame, limits Limits) ([]byte, error) {
	bodyLen := uint64(len(f.Body))
	if bodyLen > uint64(^uint32(0)) {
		return nil, ErrBodyTooLarge
	}
	if limits.MaxBodyBytes > 0 && bodyLen > uint64(limits.MaxBodyBytes) {
		return nil, ErrBodyTooLarge
	}
	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.BodyLen = uint32(bodyLen)

	dst = append(dst, EncodeHeader(h)...)
	dst = append(dst, f.Body...)
	return dst, nil
}

// WriteFrame writes f to w, retrying short writes until the frame is fully
// written or w returns an error.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	buf, err := AppendFrame(make([]byte, 0, HeaderLen+len(f.Body)), f, limits)
	if err != nil {
		return err
	}
	return WriteFull(w, buf)
}

// WriteFull loops until every byte of buf has been accepted by w.
func WriteFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Op
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint32(buf[16:20], h.BodyLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	h := Header{
		Magic:     binary.BigEndian.Uint32(b[0:4]),
		Version:   b[4],
		Op:        b[5],
		Flags:     binary.BigEndian.Uint16(b[6:8]),
		MessageID: binary.BigEndian.Uint64(b[8:16]),
		BodyLen:   binary.BigEndian.Uint32(b[16:20]),
	}
	if h.Magic != Magic {
		return Header{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Header{}, ErrUnsupportedVersion
	}
	return h, nil
}
