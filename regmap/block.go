package regmap

import "fmt"

// Reg is one 32-bit register at a fixed byte offset within a block.
type Reg struct {
	Name   string
	Offset uint32
	Fields []Field
}

// Block is an ordered register block, addressed by register name.
type Block struct {
	Name string
	Regs []Reg

	byName   map[string]int
	byOffset map[uint32]int
}

// NewBlock builds a block and validates its layout. It panics on a
// malformed table; the tables are compile-time constants, so a bad one
// is a programming error, not a runtime condition.
func NewBlock(name string, regs []Reg) *Block {
	b := &Block{
		Name:     name,
		Regs:     regs,
		byName:   make(map[string]int, len(regs)),
		byOffset: make(map[uint32]int, len(regs)),
	}
	for i, r := range regs {
		b.byName[r.Name] = i
		b.byOffset[r.Offset] = i
	}
	if err := b.Validate(); err != nil {
		panic(err)
	}
	return b
}

// Reg looks up a register by name.
func (b *Block) Reg(name string) (Reg, bool) {
	i, ok := b.byName[name]
	if !ok {
		return Reg{}, false
	}
	return b.Regs[i], true
}

// RegAt looks up a register by byte offset within the block.
func (b *Block) RegAt(offset uint32) (Reg, bool) {
	i, ok := b.byOffset[offset]
	if !ok {
		return Reg{}, false
	}
	return b.Regs[i], true
}

// Field looks up a named field and its enclosing register.
func (b *Block) Field(reg, field string) (Reg, Field, bool) {
	r, ok := b.Reg(reg)
	if !ok {
		return Reg{}, Field{}, false
	}
	for _, f := range r.Fields {
		if f.Name == field {
			return r, f, true
		}
	}
	return Reg{}, Field{}, false
}

// Size returns the byte size of the block's address window.
func (b *Block) Size() uint32 {
	var end uint32
	for _, r := range b.Regs {
		if r.Offset+4 > end {
			end = r.Offset + 4
		}
	}
	return end
}

// Validate checks the layout invariants: word-aligned unique offsets,
// unique register names, and per register non-overlapping fields that
// together span all 32 bits (reserved padding included).
func (b *Block) Validate() error {
	offsets := make(map[uint32]string, len(b.Regs))
	names := make(map[string]bool, len(b.Regs))
	for _, r := range b.Regs {
		if r.Offset%4 != 0 {
			return fmt.Errorf("regmap: %s/%s: offset 0x%X not word aligned", b.Name, r.Name, r.Offset)
		}
		if prev, dup := offsets[r.Offset]; dup {
			return fmt.Errorf("regmap: %s: registers %s and %s share offset 0x%X", b.Name, prev, r.Name, r.Offset)
		}
		offsets[r.Offset] = r.Name
		if names[r.Name] {
			return fmt.Errorf("regmap: %s: duplicate register name %s", b.Name, r.Name)
		}
		names[r.Name] = true

		var covered uint32
		for _, f := range r.Fields {
			if f.Width == 0 || int(f.Offset)+int(f.Width) > 32 {
				return fmt.Errorf("regmap: %s/%s/%s: bad bit range [%d:+%d]", b.Name, r.Name, f.Name, f.Offset, f.Width)
			}
			if covered&f.Mask() != 0 {
				return fmt.Errorf("regmap: %s/%s: field %s overlaps a sibling", b.Name, r.Name, f.Name)
			}
			covered |= f.Mask()
		}
		if covered != ^uint32(0) {
			return fmt.Errorf("regmap: %s/%s: fields cover 0x%08X, not all 32 bits", b.Name, r.Name, covered)
		}
	}
	return nil
}
