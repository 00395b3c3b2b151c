package protocol

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

func init() {
	for _, r := range []Request{
		ConnectionReady{}, NewWindow{}, RedrawWindow{}, CloseWindow{}, NewPage{},
		SetBaseColor{}, GetWindowSizes{}, SaveAsPng{}, PrepareForSaveAsTile{},
		SaveAsTile{}, RegisterGradient{}, ReleasePattern{}, SuspendRendering{},
		Clip{}, DrawCircle{}, DrawLine{}, DrawPolyline{}, DrawPolygon{},
		DrawRect{}, DrawRaster{}, DrawText{}, DrawGlyphs{},
	} {
		gob.Register(r)
	}
	for _, r := range []Response{WindowSizes{}, Connect{}, PatternRegistered{}, Failure{}} {
		gob.Register(r)
	}
}

// requestFrame and responseFrame wrap the interface values so gob records
// the concrete variant on the wire.
type requestFrame struct {
	Request Request
}

type responseFrame struct {
	Response Response
}

// Encoder writes framed messages to a stream. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *gob.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: gob.NewEncoder(w)}
}

// EncodeRequest writes one request.
func (e *Encoder) EncodeRequest(r Request) error {
	if r == nil {
		return errors.New("encode request: nil request")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(&requestFrame{Request: r}); err != nil {
		return wrapIOError("encode request", err)
	}
	return nil
}

// EncodeResponse writes one response.
func (e *Encoder) EncodeResponse(r Response) error {
	if r == nil {
		return errors.New("encode response: nil response")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(&responseFrame{Response: r}); err != nil {
		return wrapIOError("encode response", err)
	}
	return nil
}

// Decoder reads framed messages from a stream. Reads must be serialized by
// the caller.
type Decoder struct {
	dec *gob.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: gob.NewDecoder(r)}
}

// DecodeRequest reads one request.
func (d *Decoder) DecodeRequest() (Request, error) {
	var f requestFrame
	if err := d.dec.Decode(&f); err != nil {
		return nil, wrapIOError("decode request", err)
	}
	if f.Request == nil {
		return nil, fmt.Errorf("decode request: %w: empty frame", ErrProtocolViolation)
	}
	return f.Request, nil
}

// DecodeResponse reads one response.
func (d *Decoder) DecodeResponse() (Response, error) {
	var f responseFrame
	if err := d.dec.Decode(&f); err != nil {
		return nil, wrapIOError("decode response", err)
	}
	if f.Response == nil {
		return nil, fmt.Errorf("decode response: %w: empty frame", ErrProtocolViolation)
	}
	return f.Response, nil
}

// wrapIOError maps end-of-stream conditions onto ErrDisconnected.
func wrapIOError(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%s: %w", op, ErrDisconnected)
	}
	return fmt.Errorf("%s: %w", op, err)
}
