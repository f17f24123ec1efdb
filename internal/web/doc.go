// Package web is the HTTP front end for a SmartFilter server.
//
// It accepts a photo upload, stores it, and forwards a request naming the
// stored file to the TCP server through a protocol.Client:
//
//	POST /send_photo   multipart field "photo", form field "type"
//	GET  /photo/:name  the transformed image
//
// The upload reply is JSON of the form {"response": 1, "output": "<name>"},
// where response is the status byte the server sent back and output is the
// name to fetch from /photo. Outputs are always written as PNG.
//
// Every response allows any origin.
package web
