// Package protocol implements the SmartFilter wire format.
//
// A client opens a TCP connection and writes a single payload of the form
//
//	<inputPath>,<outputPath>,<variantId>
//
// with no terminator and no length prefix. The server treats its first read as
// the complete request and answers with exactly one status byte before
// closing the connection:
//
//   - 0x01 (StatusSuccess): the transformed image was written to outputPath
//   - 0x00 (StatusFailure): anything else (malformed request, unreadable
//     input, unsupported output format, write failure)
//
// # Parsing Rules
//
// The payload is split on the literal comma. There is no escaping and no
// whitespace trimming, so paths may not contain commas. Exactly three fields
// are required. A single empty field after a trailing comma is ignored, so
// "a.png,b.png,1," is still a three-field request.
//
// The variant field is decoded with Atoi, which mirrors C atoi: leading
// whitespace and an optional sign are accepted, digits are consumed up to the
// first non-digit, and text with no leading digits decodes as 0. Garbage in the
// variant field therefore selects the Grayscale variant rather than failing.
//
// # Client
//
// Client is the sending side, used by the HTTP front end. It dials, writes
// Request.String and reads the status byte; a connection closed with no byte
// is ErrNoReply.
package protocol
