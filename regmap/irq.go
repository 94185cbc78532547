package regmap

import "fmt"

// IRQSource is one interrupt condition. The same source occupies the
// same bit position in the status, enable, clear and set registers of
// its block.
type IRQSource struct {
	Name string
	Bit  uint8
}

// IRQBank names the four sibling interrupt registers of a block and
// lists the sources they carry.
type IRQBank struct {
	Status  string
	Enable  string
	Clear   string
	Set     string
	Sources []IRQSource
}

// Source looks up a source by name.
func (bank IRQBank) Source(name string) (IRQSource, bool) {
	for _, s := range bank.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return IRQSource{}, false
}

// Validate checks that every source appears as a one-bit field at the
// same position in all four registers, with the expected access mode.
func (bank IRQBank) Validate(b *Block) error {
	regs := []struct {
		name   string
		access Access
	}{
		{bank.Status, RO},
		{bank.Enable, RW},
		{bank.Clear, W1C},
		{bank.Set, W1S},
	}
	for _, rd := range regs {
		for _, s := range bank.Sources {
			_, f, ok := b.Field(rd.name, s.Name)
			if !ok {
				return fmt.Errorf("regmap: %s/%s: missing irq source %s", b.Name, rd.name, s.Name)
			}
			if f.Offset != s.Bit || f.Width != 1 {
				return fmt.Errorf("regmap: %s/%s/%s: at bit %d, want bit %d", b.Name, rd.name, s.Name, f.Offset, s.Bit)
			}
			if f.Access != rd.access {
				return fmt.Errorf("regmap: %s/%s/%s: wrong access mode", b.Name, rd.name, s.Name)
			}
		}
	}
	return nil
}

// irqReg builds one of the four sibling interrupt registers from the
// source list. All four share bit positions; only the access differs.
func irqReg(name string, offset uint32, access Access, sources []IRQSource) Reg {
	fields := make([]Field, 0, len(sources)+1)
	next := uint8(0)
	for _, s := range sources {
		if s.Bit != next {
			panic(fmt.Sprintf("regmap: %s: source %s at bit %d, want %d", name, s.Name, s.Bit, next))
		}
		fields = append(fields, Field{Name: s.Name, Offset: s.Bit, Width: 1, Access: access})
		next++
	}
	if next < 32 {
		fields = append(fields, reserved(next, 32-next))
	}
	return Reg{Name: name, Offset: offset, Fields: fields}
}
