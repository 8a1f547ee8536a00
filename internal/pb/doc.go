// Package pb encodes and decodes the archiver-appliance protobuf schema
// (EPICSEvent.proto) without generated code.
//
// A file holds one PayloadInfo header followed by sample messages whose
// concrete message type is fixed by the header's PayloadType. The encoding
// uses google.golang.org/protobuf/encoding/protowire directly so the field
// layout below is explicit:
//
//	PayloadInfo:  1 type, 2 pvname, 3 year, 4 elementCount, 15 headers
//	Sample:       1 secondsintoyear, 2 nano, 3 val, 4 severity, 5 status,
//	              6 repeatcount, 7 fieldvalues, 8 fieldactualchange
//	FieldValue:   1 name, 2 val
//
// Fields are written in field-number order, matching the reference
// serializer byte for byte.
//
// Framing of the serialized messages into lines is handled by package
// escape.
package pb
