// Package protocol defines the wire format exchanged between annotation
// clients and the segcheck coordinator.
//
// Every frame is a JSON envelope. Requests carry the client token, a message
// type, and a payload; responses echo the message type and carry an optional
// info string or error with its kind. Payloads travel as JSON-encoded strings
// so browser clients can JSON.parse them independently of the envelope; the
// decoder also accepts plain JSON objects.
package protocol
