package irrd

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParseFrameIncomplete(t *testing.T) {
	inputs := map[string]string{
		"empty":                  "",
		"bare success":           "C",
		"bare not found":         "D",
		"bare not unique":        "E",
		"data tag alone":         "A",
		"data length unfinished": "A1",
		"data body short":        "A5\nhel",
		"data missing delimiter": "A5\nhello",
		"error tag alone":        "F",
		"error unterminated":     "F foo",
	}
	for name, input := range inputs {
		if _, result := parseFrame([]byte(input), DefaultMaxBodyLength); result != parseIncomplete {
			t.Errorf("%s: parseFrame(%q) = %v, want incomplete", name, input, result)
		}
	}
}

func TestParseFrameMalformed(t *testing.T) {
	inputs := map[string]string{
		"leading delimiter":       "\n",
		"unknown tag":             "Z\n",
		"data missing length":     "A\n",
		"data non-numeric length": "Afoo",
		"success with length":     "C1",
		"error missing message":   "F\n",
		"error missing space":     "Fmsg",
		"body delimiter wrong":    "A5\nhelloX",
	}
	for name, input := range inputs {
		if _, result := parseFrame([]byte(input), DefaultMaxBodyLength); result != parseMalformed {
			t.Errorf("%s: parseFrame(%q) = %v, want malformed", name, input, result)
		}
	}
}

func TestParseFrameComplete(t *testing.T) {
	cases := []struct {
		input   string
		status  Status
		length  int
		message string
		size    int
	}{
		{"A5\nhello\n", StatusData, 5, "", 9},
		{"A5\nhello\ntrailing", StatusData, 5, "", 9},
		{"A0\n\n", StatusData, 0, "", 4},
		{"A101\n" + strings.Repeat("x", 101) + "\n", StatusData, 101, "", 107},
		{"C\n", StatusSuccess, 0, "", 2},
		{"D\n", StatusKeyNotFound, 0, "", 2},
		{"E\n", StatusKeyNotUnique, 0, "", 2},
		{"F foo\n", StatusError, 0, "foo", 6},
	}
	for _, tc := range cases {
		recovered, result := parseFrame([]byte(tc.input), DefaultMaxBodyLength)
		if result != parseComplete {
			t.Errorf("parseFrame(%.12q) = %v, want complete", tc.input, result)
			continue
		}
		if recovered.status != tc.status || recovered.length != tc.length ||
			recovered.message != tc.message || recovered.size != tc.size {
			t.Errorf("parseFrame(%.12q) = %+v, want status=%v length=%d message=%q size=%d",
				tc.input, recovered, tc.status, tc.length, tc.message, tc.size)
		}
	}
}

func TestParseFrameRejectsOversizedLength(t *testing.T) {
	if _, result := parseFrame([]byte("A1001\n"), 1000); result != parseMalformed {
		t.Fatalf("length above limit should be malformed, got %v", result)
	}
	if _, result := parseFrame([]byte("A1000\n"), 1000); result != parseIncomplete {
		t.Fatalf("length at limit should await its body, got %v", result)
	}

	// A length header too long for any accepted body must be rejected before
	// the delimiter arrives, not buffered indefinitely.
	huge := "A" + strings.Repeat("9", 25)
	if _, result := parseFrame([]byte(huge), DefaultMaxBodyLength); result != parseMalformed {
		t.Fatalf("oversized length header should be malformed, got %v", result)
	}
}

func TestParseFrameIdempotentOnPrefix(t *testing.T) {
	input := []byte("A5\nhel")
	first, firstResult := parseFrame(input, DefaultMaxBodyLength)
	second, secondResult := parseFrame(input, DefaultMaxBodyLength)
	if firstResult != secondResult || first != second {
		t.Fatalf("re-parsing the same prefix diverged: %+v/%v vs %+v/%v",
			first, firstResult, second, secondResult)
	}
}

type parsedFrame struct {
	status  Status
	length  int
	message string
	body    string
}

// parseScript drives the buffer/parser loop over script delivered in
// chunkSize slices, returning every frame recovered.
func parseScript(t *testing.T, script string, chunkSize int) []parsedFrame {
	t.Helper()
	buf := newBuffer(8)
	var frames []parsedFrame
	offset := 0
	for {
		recovered, result := parseFrame(buf.unconsumed(), DefaultMaxBodyLength)
		switch result {
		case parseComplete:
			body := ""
			if recovered.status == StatusData {
				body = string(buf.unconsumed()[recovered.headerLen : recovered.size-1])
			}
			frames = append(frames, parsedFrame{recovered.status, recovered.length, recovered.message, body})
			buf.consume(recovered.size)
			continue
		case parseMalformed:
			t.Fatalf("unexpected malformed parse at offset %d", offset)
		}
		if offset == len(script) {
			return frames
		}
		end := min(offset+chunkSize, len(script))
		fillBuffer(t, buf, script[offset:end])
		offset = end
	}
}

func TestParseFrameChunkInvariance(t *testing.T) {
	script := "A5\nhello\n" +
		"C\n" +
		"D\n" +
		"A0\n\n" +
		"F query limit exceeded\n" +
		"A23\nAS64496 AS64497 AS64511\n" +
		"E\n"

	whole := parseScript(t, script, len(script))
	if len(whole) != 7 {
		t.Fatalf("expected 7 frames from contiguous delivery, got %d", len(whole))
	}
	for chunkSize := 1; chunkSize <= len(script); chunkSize++ {
		t.Run(fmt.Sprintf("chunk-%d", chunkSize), func(t *testing.T) {
			chunked := parseScript(t, script, chunkSize)
			if !reflect.DeepEqual(whole, chunked) {
				t.Fatalf("chunk size %d produced %v, contiguous produced %v", chunkSize, chunked, whole)
			}
		})
	}
}

func TestParseFrameSplitDeliveryMatchesContiguous(t *testing.T) {
	buf := newBuffer(8)
	fillBuffer(t, buf, "A5\nhel")
	if _, result := parseFrame(buf.unconsumed(), DefaultMaxBodyLength); result != parseIncomplete {
		t.Fatalf("partial body should be incomplete, got %v", result)
	}
	fillBuffer(t, buf, "lo\n")
	recovered, result := parseFrame(buf.unconsumed(), DefaultMaxBodyLength)
	if result != parseComplete {
		t.Fatalf("completed body should parse, got %v", result)
	}
	if recovered.length != 5 || recovered.size != 9 {
		t.Fatalf("recovered %+v, want length=5 size=9", recovered)
	}
	if body := string(buf.unconsumed()[recovered.headerLen : recovered.size-1]); body != "hello" {
		t.Fatalf("body = %q, want \"hello\"", body)
	}
}
