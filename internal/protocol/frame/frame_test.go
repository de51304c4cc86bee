package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	in := Frame{
		Header: Header{Op: 6, MessageID: 42},
		Body:   []byte("body-bytes"),
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != HeaderLen+len(in.Body) {
		t.Fatalf("unexpected encoded length: %d", buf.Len())
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Version != Version {
		t.Fatalf("envelope mismatch: %+v", out.Header)
	}
	if out.Header.Op != in.Header.Op || out.Header.MessageID != in.Header.MessageID {
		t.Fatalf("header mismatch: got=%+v want=%+v", out.Header, in.Header)
	}
	if out.Header.IsResponse() {
		t.Fatalf("request frame should not carry response flag")
	}
	if !bytes.Equal(out.Body, in.Body) {
		t.Fatalf("body mismatch: %q", out.Body)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	_, err = ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected ErrShortHeader wrapping io.EOF, got %v", err)
	}
}

func TestReadFrameShortBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Header: Header{Op: 7, MessageID: 1}, Body: []byte("abcdef")}, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	b := buf.Bytes()[:buf.Len()-2]
	_, err := ReadFrame(bytes.NewReader(b), DefaultLimits())
	if !errors.Is(err, ErrShortBody) {
		t.Fatalf("expected ErrShortBody, got %v", err)
	}
}

func TestReadFrameInvalidMagic(t *testing.T) {
	h := EncodeHeader(Header{Magic: 0xdeadbeef, Version: Version})
	_, err := ReadFrame(bytes.NewReader(h), DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadFrameUnsupportedVersion(t *testing.T) {
	h := EncodeHeader(Header{Magic: Magic, Version: 9})
	_, err := ReadFrame(bytes.NewReader(h), DefaultLimits())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestReadFrameBodyTooLarge(t *testing.T) {
	h := EncodeHeader(Header{Magic: Magic, Version: Version, BodyLen: 1024})
	_, err := ReadFrame(bytes.NewReader(h), Limits{MaxBodyBytes: 16})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if _, err := AppendFrame(nil, Frame{Body: make([]byte, 32)}, Limits{MaxBodyBytes: 16}); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge on encode, got %v", err)
	}
}

type trickleWriter struct {
	buf   bytes.Buffer
	calls int
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(p) > 3 {
		p = p[:3]
	}
	return w.buf.Write(p)
}

func TestWriteFrameLoopsOnShortWrites(t *testing.T) {
	w := &trickleWriter{}
	in := Frame{Header: Header{Op: 1, MessageID: 9}, Body: []byte("0123456789")}
	if err := WriteFrame(w, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if w.calls < 2 {
		t.Fatalf("expected several short writes, got %d", w.calls)
	}
	out, err := ReadFrame(&w.buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(out.Body, in.Body) {
		t.Fatalf("body mismatch after short writes: %q", out.Body)
	}
}

type zeroWriter struct{}

func (zeroWriter) Write([]byte) (int, error) { return 0, nil }

func TestWriteFullZeroProgress(t *testing.T) {
	if err := WriteFull(zeroWriter{}, []byte("x")); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}
