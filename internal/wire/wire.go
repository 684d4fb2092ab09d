// Package wire defines the CBOR request/response envelope shared by every
// transport and the encode/decode/framing helpers built on top of it.
// Grounded on original_source/src/wire.rs (the serde_cbor-based schema)
// and teranos-QNTX's go.mod, which carries fxamacker/cbor/v2 for the same
// purpose.
package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/dreamware/dindex/internal/direrr"
	"github.com/dreamware/dindex/internal/record"
)

// Action identifies the kind of a wire Message. Values match spec.md §6
// exactly; inbound 0-2 are client requests, outbound 3-5 are server
// responses.
type Action uint8

const (
	ActionQuery        Action = 0
	ActionPublish      Action = 1
	ActionListen       Action = 2
	ActionResult       Action = 3
	ActionEndOfResults Action = 4
	ActionUnsolicited  Action = 5
)

func (a Action) String() string {
	switch a {
	case ActionQuery:
		return "query"
	case ActionPublish:
		return "publish"
	case ActionListen:
		return "listen"
	case ActionResult:
		return "result"
	case ActionEndOfResults:
		return "end_of_results"
	case ActionUnsolicited:
		return "unsolicited_msg"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// payload mirrors the wire schema's nested `{p: map<string,string>}`
// record shape; record.Record itself stays a bare map for the rest of
// the codebase.
type payload struct {
	P record.Record `cbor:"p"`
}

// Message is one frame of the wire protocol: an action tag plus its
// associated record (a query, a published record, or a result).
type Message struct {
	Action Action        `cbor:"action"`
	Record record.Record `cbor:"record"`
}

type wireData struct {
	Action Action  `cbor:"action"`
	Record payload `cbor:"record"`
}

// terminator is the literal byte appended after every stream-framed
// message (TCP and Unix transports; spec.md §6 framing table).
const terminator = 0xFF

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Encode serializes m into its canonical, definite-length CBOR form.
// The result never contains a bare trailing 0xFF byte produced by the
// codec itself, so the stream framer's terminator is unambiguous.
func Encode(m Message) ([]byte, error) {
	wd := wireData{Action: m.Action, Record: payload{P: m.Record}}
	return encMode.Marshal(wd)
}

// Decode parses b as a single CBOR-encoded Message.
func Decode(b []byte) (Message, error) {
	var wd wireData
	if err := cbor.Unmarshal(b, &wd); err != nil {
		return Message{}, direrr.New(direrr.Decode, "cbor unmarshal", err)
	}
	return Message{Action: wd.Action, Record: wd.Record.P}, nil
}

// WriteFramed encodes m and writes it to w followed by the terminator
// byte, for the stream-oriented (TCP, Unix) transports.
func WriteFramed(w io.Writer, m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte{terminator})
	return err
}

// FrameScanner reads terminator-delimited CBOR messages off a stream.
type FrameScanner struct {
	r *bufio.Reader
}

// NewFrameScanner wraps r for terminator-delimited reads.
func NewFrameScanner(r io.Reader) *FrameScanner {
	return &FrameScanner{r: bufio.NewReader(r)}
}

// Next reads and decodes the next frame, blocking until a terminator
// byte or EOF is seen.
func (s *FrameScanner) Next() (Message, error) {
	raw, err := s.r.ReadBytes(terminator)
	if err != nil {
		if err == io.EOF && len(raw) == 0 {
			return Message{}, io.EOF
		}
		if err != io.EOF {
			return Message{}, direrr.New(direrr.Transport, "read frame", err)
		}
	}
	raw = bytes.TrimSuffix(raw, []byte{terminator})
	if len(raw) == 0 {
		return Message{}, io.EOF
	}
	return Decode(raw)
}
