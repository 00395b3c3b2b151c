package protocol

import "testing"

func TestColorFromUint32RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		color Color
	}{
		{"transparent", Transparent},
		{"black", Black},
		{"white smoke", WhiteSmoke},
		{"translucent red", Color{R: 255, A: 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ColorFromUint32(tt.color.Uint32())
			if got != tt.color {
				t.Errorf("round trip = %v, want %v", got, tt.color)
			}
		})
	}
}

func TestColorZeroIsTransparent(t *testing.T) {
	if !ColorFromUint32(0).IsTransparent() {
		t.Error("packed zero should decode to a transparent colour")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    Color
		wantErr bool
	}{
		{input: "#ff0000", want: Color{R: 255, A: 255}},
		{input: "00ff00", want: Color{G: 255, A: 255}},
		{input: "#0000ff80", want: Color{B: 255, A: 128}},
		{input: "#fff", want: White},
		{input: "#0008", want: Color{A: 136}},
		{input: "  #F5F5F5 ", want: WhiteSmoke},
		{input: "#ff00", wantErr: true},
		{input: "#gggggg", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHexColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseHexColor(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHexColor(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestColorString(t *testing.T) {
	if got := (Color{R: 1, G: 2, B: 3, A: 255}).String(); got != "#010203ff" {
		t.Errorf("String() = %q", got)
	}
}
