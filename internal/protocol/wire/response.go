package wire

import (
	"encoding/binary"
	"fmt"
)

// Response is a status plus an optional payload.
type Response struct {
	Status  Status
	Present bool
	Payload []byte
}

// EncodeResponse serializes resp as [u8 status][u32 present]{[u32 len][bytes]}.
func EncodeResponse(resp Response) []byte {
	size := tagLen + countLen
	if resp.Present {
		size += lengthLen + len(resp.Payload)
	}
	buf := make([]byte, size)
	buf[0] = byte(resp.Status)
	if !resp.Present {
		return buf
	}
	binary.BigEndian.PutUint32(buf[1:5], 1)
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(resp.Payload)))
	copy(buf[9:], resp.Payload)
	return buf
}

// DecodeResponse parses a response body received for a request tagged op.
//
// The returned payload never aliases body. Shape rules:
//   - get/success must carry a payload; get/not_found must not
//   - noop and put responses never carry a payload on success
//   - error-family statuses may carry a diagnostic payload
func DecodeResponse(op Op, body []byte) (Response, error) {
	if len(body) < tagLen+countLen {
		return Response{}, decodeErr(op, ErrTruncated)
	}
	resp := Response{Status: Status(body[0])}
	offset := tagLen + countLen
	switch present := binary.BigEndian.Uint32(body[1:5]); present {
	case 0:
	case 1:
		payload, next, err := readOperand(body, offset)
		if err != nil {
			return Response{}, decodeErr(op, err)
		}
		resp.Present = true
		resp.Payload = payload
		offset = next
	default:
		return Response{}, decodeErr(op, fmt.Errorf("%w: payload_present=%d", ErrUnexpectedTag, present))
	}
	if offset != len(body) {
		return Response{}, decodeErr(op, fmt.Errorf("%w: %d trailing bytes", ErrCorruptLength, len(body)-offset))
	}
	if err := checkShape(op, resp); err != nil {
		return Response{}, decodeErr(op, err)
	}
	return resp, nil
}

func checkShape(op Op, resp Response) error {
	if resp.Status.IsError() {
		return nil
	}
	switch {
	case op == OpGet && resp.Status == StatusSuccess && !resp.Present:
		return fmt.Errorf("%w: success without payload", ErrInconsistentPayload)
	case resp.Status == StatusNotFound && resp.Present:
		return fmt.Errorf("%w: not_found with payload", ErrInconsistentPayload)
	case op != OpGet && resp.Present:
		return fmt.Errorf("%w: %s response carries payload", ErrInconsistentPayload, op)
	}
	return nil
}
