// Package regmap describes the UOE register interface as data.
//
// The hardware exposes two blocks of packed 32-bit registers (the main
// engine block and the built-in test block). This package declares both
// layouts as explicit field-descriptor tables and provides the bit-exact
// codec used for every register access. Native struct bit-fields are
// deliberately avoided: their layout is compiler-dependent, which is not
// acceptable for a hardware contract.
//
// Usage:
//
//	blk := regmap.MainBlock()
//	reg, f, _ := blk.Field("arp_configuration", "arp_tryings")
//	raw, _ := bus.Read32(reg.Offset)
//	tryings := regmap.Extract(raw, f)
package regmap

import "errors"

// ErrOutOfRange reports a value wider than its destination field.
var ErrOutOfRange = errors.New("regmap: value exceeds field width")

// Access describes how software may touch a field.
type Access uint8

// Field access modes.
const (
	// RO is hardware-driven; software writes are ignored.
	RO Access = iota
	// RW is plain software-owned configuration.
	RW
	// WT triggers a hardware action on write and reads back as zero.
	WT
	// W1C clears the matching status bit when written with 1.
	W1C
	// W1S sets the matching status bit when written with 1.
	W1S
)

// Field is a named bit range inside one 32-bit register.
type Field struct {
	Name   string
	Offset uint8 // bit offset, 0..31
	Width  uint8 // 1..32
	Access Access
}

// Mask returns the field's bits set in register position.
func (f Field) Mask() uint32 {
	return f.valueMask() << f.Offset
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 {
	return f.valueMask()
}

func (f Field) valueMask() uint32 {
	if f.Width >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << f.Width) - 1
}

// reserved marks padding bits. Reserved fields have no name and never
// appear in lookups, but they count toward the full-32-bit invariant.
func reserved(offset, width uint8) Field {
	return Field{Offset: offset, Width: width, Access: RO}
}

// Extract returns the field's value from a raw register word.
func Extract(raw uint32, f Field) uint32 {
	return (raw >> f.Offset) & f.valueMask()
}

// Insert returns raw with the field replaced by v, all other bits
// untouched. It is strict: v wider than the field yields ErrOutOfRange.
func Insert(raw uint32, f Field, v uint32) (uint32, error) {
	if v > f.valueMask() {
		return raw, ErrOutOfRange
	}
	return raw&^f.Mask() | v<<f.Offset, nil
}

// InsertTrunc is the permissive variant of Insert: v is silently
// truncated to the field width.
func InsertTrunc(raw uint32, f Field, v uint32) uint32 {
	return raw&^f.Mask() | (v&f.valueMask())<<f.Offset
}
