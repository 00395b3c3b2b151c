package protocol

import (
	"errors"
	"net"
	"reflect"
	"testing"
)

func TestCodecRoundTripOverConn(t *testing.T) {
	requests := []Request{
		ConnectionReady{},
		NewWindow{},
		SetBaseColor{Color: WhiteSmoke.Uint32()},
		Clip{P0: Pt(0, 0), P1: Pt(10, 10)},
		DrawCircle{
			Center: Pt(5, 5),
			Radius: 3,
			Fill:   &FillParams{Brush: PatternRef(2), Rule: EvenOdd},
		},
		DrawPolygon{
			Path:   PathWithHoles([]float64{0, 4, 4, 1, 2, 2}, []float64{0, 0, 4, 1, 1, 2}, []int{3, 3}),
			Stroke: &StrokeParams{Color: Black, Width: 2, Dash: []float64{4, 4}},
		},
		DrawText{Pos: Pt(1, 2), Text: "héllo", Color: Black, Size: 12, Angle: 0.5},
		RegisterGradient{Gradient: Gradient{
			Kind:  GradientLinear,
			X1:    10,
			Stops: []ColorStop{{0, Black}, {1, White}},
		}},
		SaveAsTile{X: 1, Y: 2, Width: 3, Height: 4, Extend: ExtendReflect},
	}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	enc := NewEncoder(client)
	dec := NewDecoder(server)

	go func() {
		for _, r := range requests {
			if err := enc.EncodeRequest(r); err != nil {
				t.Errorf("encode %s: %v", r.Kind(), err)
				return
			}
		}
	}()

	for _, want := range requests {
		got, err := dec.DecodeRequest()
		if err != nil {
			t.Fatalf("decode %s: %v", want.Kind(), err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("decoded %#v, want %#v", got, want)
		}
	}
}

func TestCodecResponses(t *testing.T) {
	responses := []Response{
		WindowSizes{Width: 640, Height: 480},
		Connect{Address: "unix:/tmp/x.sock"},
		PatternRegistered{Index: 7},
		Failure{Message: "no tile in progress"},
	}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		enc := NewEncoder(server)
		for _, r := range responses {
			if err := enc.EncodeResponse(r); err != nil {
				t.Errorf("encode %T: %v", r, err)
				return
			}
		}
	}()

	dec := NewDecoder(client)
	for _, want := range responses {
		got, err := dec.DecodeResponse()
		if err != nil {
			t.Fatalf("decode %T: %v", want, err)
		}
		if got != want {
			t.Errorf("decoded %#v, want %#v", got, want)
		}
	}
}

func TestDecodeAfterCloseIsDisconnected(t *testing.T) {
	client, server := net.Pipe()
	client.Close()

	_, err := NewDecoder(server).DecodeRequest()
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}

func TestEncodeNil(t *testing.T) {
	enc := NewEncoder(&discard{})
	if err := enc.EncodeRequest(nil); err == nil {
		t.Error("expected error encoding nil request")
	}
	if err := enc.EncodeResponse(nil); err == nil {
		t.Error("expected error encoding nil response")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind  Kind
		reply bool
		draw  bool
	}{
		{KindConnectionReady, false, false},
		{KindGetWindowSizes, true, false},
		{KindSaveAsTile, true, false},
		{KindRegisterGradient, true, false},
		{KindSaveAsPng, false, false},
		{KindClip, false, true},
		{KindDrawGlyphs, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.ExpectsReply(); got != tt.reply {
				t.Errorf("ExpectsReply() = %v, want %v", got, tt.reply)
			}
			if got := tt.kind.IsDraw(); got != tt.draw {
				t.Errorf("IsDraw() = %v, want %v", got, tt.draw)
			}
		})
	}

	if got := Kind(200).String(); got != "Unknown" {
		t.Errorf("out of range kind = %q", got)
	}
}
