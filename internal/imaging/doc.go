// Package imaging provides filesystem image I/O for the transformation server.
//
// Store.Load decodes an image from a path and Store.Save encodes one to a path.
// Both are synchronous and report failures as typed errors rather than
// panicking, so the caller can turn any failure into a protocol reply.
//
// # Formats
//
// Decoding sniffs the file contents and supports PNG, JPEG, GIF, BMP, TIFF
// and WebP. Encoding picks the format from the destination extension and
// supports PNG, JPEG, GIF, BMP and TIFF. Single channel images stay single
// channel when written as PNG, JPEG or TIFF.
//
// # Error Handling
//
// Load returns *LoadError and Save returns *SaveError. Each wraps one of the
// sentinel kinds so callers can classify failures with errors.Is:
//   - ErrUnreadable: the source could not be opened (missing, permission)
//   - ErrDecode: the source is not a supported image
//   - ErrUnsupportedFormat: the destination extension has no encoder
//   - ErrWrite: the destination could not be created or written
//
// # Thread Safety
//
// Store holds configuration only and is safe for concurrent use. Images are
// never cached or shared; every Load returns a new image owned by the caller.
package imaging
