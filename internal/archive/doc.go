// Package archive is the read side of the historian that samples are
// exported from.
//
// The exporter only needs three things from a historian: the list of
// channels, the descriptive metadata of one channel, and an ordered cursor
// over that channel's samples. Those are captured by the Index and Cursor
// interfaces. SQLiteIndex implements them on top of a SQLite database whose
// schema is created by EnsureSchema.
//
// # Raw sample layout
//
// Sample values are stored the way the control system delivers them: a
// little-endian buffer of count elements of the sample's native type. The
// type is identified by its DBR code (0 string, 1 short, 2 float, 3 enum,
// 4 char, 5 long, 6 double). Strings occupy fixed 40-byte NUL-padded slots.
//
// A sample whose buffer does not match its declared type and count is
// reported by the cursor as ErrCorruptHeader. Only that sample is affected;
// the cursor can still be advanced past it.
package archive
