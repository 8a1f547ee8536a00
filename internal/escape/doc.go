// Package escape implements the line framing used by archiver-appliance
// protobuf files.
//
// Every record is a serialized protobuf message written as one text line.
// Three bytes are escaped so the payload never contains a line break:
//
//	0x1B (ESC) -> 0x1B 0x01
//	0x0A (LF)  -> 0x1B 0x02
//	0x0D (CR)  -> 0x1B 0x03
//
// after which a single 0x0A terminates the record. There is no length
// prefix; readers split on LF and reverse the table.
package escape
