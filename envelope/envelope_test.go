package envelope

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarshalRequestWire(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []byte
	}{
		{"echo", &Echo{Content: "Hello"}, []byte{0x0a, 0x07, 0x0a, 0x05, 'H', 'e', 'l', 'l', 'o'}},
		{"empty echo", &Echo{}, []byte{0x0a, 0x00}},
		{"add", &Add{A: 1, B: 2}, []byte{0x12, 0x04, 0x08, 0x01, 0x10, 0x02}},
		{"add negative", &Add{A: -1}, []byte{0x12, 0x0b, 0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalRequest(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MarshalRequest mismatch (-want +got):\n%s", diff)
			}

			back, err := UnmarshalRequest(got)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.req, back); diff != "" {
				t.Errorf("UnmarshalRequest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalResponseWire(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want []byte
	}{
		{"echo", &Echo{Content: "Hi"}, []byte{0x0a, 0x04, 0x0a, 0x02, 'H', 'i'}},
		{"add result", &AddResult{Result: 3}, []byte{0x12, 0x02, 0x08, 0x03}},
		{"zero add result", &AddResult{}, []byte{0x12, 0x00}},
		{"error", &Error{Message: "x"}, []byte{0x1a, 0x03, 0x0a, 0x01, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalResponse(tt.resp)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MarshalResponse mismatch (-want +got):\n%s", diff)
			}

			back, err := UnmarshalResponse(got)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.resp, back); diff != "" {
				t.Errorf("UnmarshalResponse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddExtremes(t *testing.T) {
	req := &Add{A: math.MinInt32, B: math.MaxInt32}
	b, err := MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Request(req), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRequestLastVariantWins(t *testing.T) {
	b := []byte{
		0x0a, 0x03, 0x0a, 0x01, 'a', // echo "a"
		0x12, 0x02, 0x08, 0x07, // add 7+0
	}
	got, err := UnmarshalRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Request(&Add{A: 7}), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRequestSkipsUnknownFields(t *testing.T) {
	b := []byte{
		0x20, 0x01, // unknown field 4 as varint
		0x0a, 0x05, 0x0a, 0x01, 'z', 0x18, 0x05, // echo "z" with unknown field 3
	}
	got, err := UnmarshalRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Request(&Echo{Content: "z"}), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRequestUnsupported(t *testing.T) {
	for name, b := range map[string][]byte{
		"empty":         {},
		"unknown oneof": {0x1a, 0x02, 0x08, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRequest(b)
			if !errors.Is(err, ErrUnsupportedRequest) {
				t.Fatalf("got %v, want ErrUnsupportedRequest", err)
			}
		})
	}
}

func TestUnmarshalRequestMalformed(t *testing.T) {
	for name, b := range map[string][]byte{
		"truncated variant": {0x0a, 0x05, 'a'},
		"truncated tag":     {0x80},
		"reserved type":     {0x0f},
		"bad utf8":          {0x0a, 0x03, 0x0a, 0x01, 0xff},
		"string as varint":  {0x0a, 0x02, 0x08, 0x01},
		"int as bytes":      {0x12, 0x03, 0x0a, 0x01, 'a'},
		"echo as varint":    {0x08, 0x2a},
		"add as fixed32":    {0x15, 0x01, 0x00, 0x00, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRequest(b)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("got %v, want *DecodeError", err)
			}
		})
	}
}

func TestMarshalNil(t *testing.T) {
	if _, err := MarshalRequest(nil); err == nil {
		t.Error("MarshalRequest(nil) should fail")
	}
	if _, err := MarshalRequest((*Echo)(nil)); err == nil {
		t.Error("MarshalRequest((*Echo)(nil)) should fail")
	}
	if _, err := MarshalResponse((*Error)(nil)); err == nil {
		t.Error("MarshalResponse((*Error)(nil)) should fail")
	}
}

func TestUnmarshalResponseWrongVariantType(t *testing.T) {
	for name, b := range map[string][]byte{
		"echo as varint":   {0x08, 0x01},
		"result as varint": {0x10, 0x03},
		"error as fixed64": {0x19, 0, 0, 0, 0, 0, 0, 0, 0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalResponse(b)
			var de *DecodeError
			if !errors.As(err, &de) || !errors.Is(err, errWireType) {
				t.Fatalf("got %v, want *DecodeError for wrong wire type", err)
			}
		})
	}
}
