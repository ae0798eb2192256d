package irrd

// Status classifies a parsed response frame. Registry-level outcomes
// (not-found, not-unique, server error) are normal results, not faults of
// the connection; callers branch on them exhaustively.
type Status int

// Response status values, one per wire tag.
const (
	StatusData Status = iota
	StatusSuccess
	StatusKeyNotFound
	StatusKeyNotUnique
	StatusError
)

func (status Status) String() string {
	switch status {
	case StatusData:
		return "data"
	case StatusSuccess:
		return "success"
	case StatusKeyNotFound:
		return "key-not-found"
	case StatusKeyNotUnique:
		return "key-not-unique"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Wire tag bytes of the IRRd query protocol.
const (
	tagData         = 'A'
	tagSuccess      = 'C'
	tagKeyNotFound  = 'D'
	tagKeyNotUnique = 'E'
	tagError        = 'F'
)

const delimiter = '\n'

// maxLengthDigits bounds the decimal length header. Anything longer cannot
// describe a body the client would accept and marks untrustworthy framing.
const maxLengthDigits = 18

type parseResult int

const (
	parseComplete parseResult = iota
	parseIncomplete
	parseMalformed
)

// frame is one complete, self-delimited response unit recovered from the
// byte stream.
type frame struct {
	status  Status
	length  int    // declared body length, data frames only
	message string // diagnostic text, error frames only

	headerLen int // status line bytes, including its delimiter
	size      int // total frame bytes, including body and trailing delimiter
}

// parseFrame recognizes a single frame at the start of input. It is
// stateless and idempotent on a given input prefix: fed the same bytes it
// returns the same result, and an incomplete parse consumes nothing. A data
// frame is complete only once its declared body and trailing delimiter are
// fully present. maxBody bounds the accepted declared length; larger values
// are malformed framing rather than an allocation request.
func parseFrame(input []byte, maxBody int) (frame, parseResult) {
	if len(input) == 0 {
		return frame{}, parseIncomplete
	}

	switch input[0] {
	case tagData:
		return parseDataFrame(input, maxBody)

	case tagSuccess, tagKeyNotFound, tagKeyNotUnique:
		if len(input) < 2 {
			return frame{}, parseIncomplete
		}
		if input[1] != delimiter {
			return frame{}, parseMalformed
		}
		status := StatusSuccess
		switch input[0] {
		case tagKeyNotFound:
			status = StatusKeyNotFound
		case tagKeyNotUnique:
			status = StatusKeyNotUnique
		}
		return frame{status: status, headerLen: 2, size: 2}, parseComplete

	case tagError:
		if len(input) < 2 {
			return frame{}, parseIncomplete
		}
		if input[1] != ' ' {
			return frame{}, parseMalformed
		}
		for i := 2; i < len(input); i++ {
			if input[i] == delimiter {
				return frame{
					status:    StatusError,
					message:   string(input[2:i]),
					headerLen: i + 1,
					size:      i + 1,
				}, parseComplete
			}
		}
		return frame{}, parseIncomplete

	default:
		return frame{}, parseMalformed
	}
}

func parseDataFrame(input []byte, maxBody int) (frame, parseResult) {
	i := 1
	length := 0
	for ; i < len(input); i++ {
		digit := input[i]
		if digit < '0' || digit > '9' {
			break
		}
		if i > maxLengthDigits {
			return frame{}, parseMalformed
		}
		length = length*10 + int(digit-'0')
	}
	if i == len(input) {
		// Tag alone, or tag plus a digit prefix: more length bytes may follow.
		return frame{}, parseIncomplete
	}
	if i == 1 || input[i] != delimiter {
		return frame{}, parseMalformed
	}
	if length > maxBody {
		return frame{}, parseMalformed
	}

	headerLen := i + 1
	size := headerLen + length + 1
	if len(input) < size {
		return frame{}, parseIncomplete
	}
	if input[size-1] != delimiter {
		return frame{}, parseMalformed
	}
	return frame{status: StatusData, length: length, headerLen: headerLen, size: size}, parseComplete
}
