package protocol

import "io"

// Status is the single byte sent back to the client.
type Status byte

const (
	// StatusFailure reports any failure.
	StatusFailure Status = 0x00

	// StatusSuccess reports that the output image was written.
	StatusSuccess Status = 0x01
)

// String returns "success" or "failure".
func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// StatusFor maps an execution error to a reply status.
func StatusFor(err error) Status {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// WriteStatus writes exactly one status byte to w.
func WriteStatus(w io.Writer, s Status) error {
	_, err := w.Write([]byte{byte(s)})
	return err
}
