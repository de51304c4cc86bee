// Package wire encodes key/value requests and decodes responses.
//
// Request body:  [u8 op][u32 operand_count]{[u32 len][bytes]}
// Response body: [u8 status][u32 payload_present]{[u32 len][bytes]}
//
// All integers are big endian. Functions here are pure and never perform I/O.
package wire
