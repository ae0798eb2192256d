package irrd

import (
	"io"
	"reflect"
	"testing"
)

func decodeAll(t *testing.T, decoder RecordDecoder, body string) []string {
	t.Helper()
	remaining := []byte(body)
	var records []string
	for {
		record, consumed, err := decoder.Decode(remaining)
		if consumed > len(remaining) {
			t.Fatalf("decoder consumed %d of %d bytes", consumed, len(remaining))
		}
		remaining = remaining[consumed:]
		if err == io.EOF {
			return records
		}
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if consumed == 0 {
			t.Fatalf("decoder made no progress on %q", remaining)
		}
		records = append(records, record)
	}
}

func TestWordDecoder(t *testing.T) {
	cases := []struct {
		body string
		want []string
	}{
		{"", nil},
		{"   \n ", nil},
		{"AS64496", []string{"AS64496"}},
		{"AS64496 AS64497 AS64511", []string{"AS64496", "AS64497", "AS64511"}},
		{"192.0.2.0/24 198.51.100.0/24\n", []string{"192.0.2.0/24", "198.51.100.0/24"}},
		{"a\nb c\n", []string{"a", "b", "c"}},
	}
	for _, tc := range cases {
		if got := decodeAll(t, WordDecoder, tc.body); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("WordDecoder(%q) = %v, want %v", tc.body, got, tc.want)
		}
	}
}

func TestParagraphDecoder(t *testing.T) {
	object1 := "route: 192.0.2.0/24\norigin: AS64496"
	object2 := "route: 198.51.100.0/24\norigin: AS64497"

	cases := []struct {
		body string
		want []string
	}{
		{"", nil},
		{"\n\n\n", nil},
		{object1, []string{object1}},
		{object1 + "\n", []string{object1}},
		{object1 + "\n\n" + object2, []string{object1, object2}},
		{object1 + "\n\n" + object2 + "\n\n", []string{object1, object2}},
	}
	for _, tc := range cases {
		if got := decodeAll(t, ParagraphDecoder, tc.body); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParagraphDecoder(%q) = %v, want %v", tc.body, got, tc.want)
		}
	}
}

func TestWholeBodyDecoder(t *testing.T) {
	version := "IRRd -- version 4.4.2"
	got := decodeAll(t, WholeBodyDecoder, version)
	if !reflect.DeepEqual(got, []string{version}) {
		t.Fatalf("WholeBodyDecoder = %v, want the full body as one record", got)
	}
	if got := decodeAll(t, WholeBodyDecoder, ""); got != nil {
		t.Fatalf("WholeBodyDecoder on empty body = %v, want none", got)
	}
}
