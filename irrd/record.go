package irrd

import "io"

// RecordDecoder turns the raw body bytes of a data frame into a sequence of
// records. Decode is handed the remaining undecoded body and extracts the
// next record, reporting how many body bytes it consumed. It returns io.EOF
// once no further record can be extracted; the client drains whatever body
// bytes remain. Any other error is local to the response being decoded and
// never terminates the connection.
type RecordDecoder interface {
	Decode(body []byte) (record string, consumed int, err error)
}

// Built-in decoders matching the shapes of IRRd response bodies.
var (
	// WordDecoder yields whitespace-separated tokens, as returned for
	// route and set-member lists.
	WordDecoder RecordDecoder = wordDecoder{}

	// ParagraphDecoder yields blank-line-separated paragraphs, as returned
	// for RPSL object lookups.
	ParagraphDecoder RecordDecoder = paragraphDecoder{}

	// WholeBodyDecoder yields the entire body as a single record.
	WholeBodyDecoder RecordDecoder = wholeBodyDecoder{}
)

type wordDecoder struct{}

func (wordDecoder) Decode(body []byte) (string, int, error) {
	start := 0
	for start < len(body) && isSpace(body[start]) {
		start++
	}
	if start == len(body) {
		return "", start, io.EOF
	}
	end := start
	for end < len(body) && !isSpace(body[end]) {
		end++
	}
	consumed := end
	for consumed < len(body) && body[consumed] == ' ' {
		consumed++
	}
	return string(body[start:end]), consumed, nil
}

type paragraphDecoder struct{}

func (paragraphDecoder) Decode(body []byte) (string, int, error) {
	start := 0
	for start < len(body) && body[start] == delimiter {
		start++
	}
	if start == len(body) {
		return "", start, io.EOF
	}
	for i := start; i+1 < len(body); i++ {
		if body[i] == delimiter && body[i+1] == delimiter {
			return string(body[start:i]), i + 1, nil
		}
	}
	end := len(body)
	for end > start && body[end-1] == delimiter {
		end--
	}
	return string(body[start:end]), len(body), nil
}

type wholeBodyDecoder struct{}

func (wholeBodyDecoder) Decode(body []byte) (string, int, error) {
	if len(body) == 0 {
		return "", 0, io.EOF
	}
	return string(body), len(body), nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == delimiter
}
