// Package palette builds the column-wide mapping between compact indices and voxel types.
package palette

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/willf/bitset"

	"github.com/astei/sectiontree/voxel"
)

// Width is the bit width of the indices a palette hands out.
type Width uint8

const (
	// Narrow palettes use 8-bit indices.
	Narrow Width = 8
	// Wide palettes use 16-bit indices.
	Wide Width = 16

	// MaxNarrow is the largest palette that still fits narrow indices.
	MaxNarrow = 255
	// MaxEntries is the most entries a wide index can address.
	MaxEntries = 1 << 16
)

var (
	// ErrOverflow is returned when a column holds more distinct types than a wide index can address.
	ErrOverflow = errors.New("palette: too many distinct voxel types")
	// ErrDuplicate is returned by FromTypes when a type appears twice.
	ErrDuplicate = errors.New("palette: duplicate voxel type")
)

// Palette is an immutable bidirectional index <-> type mapping. Indices are
// contiguous from zero, in first-occurrence order.
//
// Lookups go through byCode, a table indexed by registry code whose live
// slots are marked in assigned. A type whose code is already owned by a
// different type lands in collided instead.
type Palette[T voxel.Type] struct {
	types    []T
	assigned *bitset.BitSet
	byCode   []uint16
	collided map[T]uint16
}

func newPalette[T voxel.Type]() *Palette[T] {
	return &Palette[T]{
		assigned: bitset.New(MaxEntries),
		byCode:   make([]uint16, MaxEntries),
	}
}

// Build scans sections in order, each in its own row-major order, and assigns
// every type the position of its first occurrence.
func Build[T voxel.Type](sections [][]T) (*Palette[T], error) {
	p := newPalette[T]()
	for _, section := range sections {
		for _, t := range section {
			if _, ok := p.lookup(t); ok {
				continue
			}
			if len(p.types) == MaxEntries {
				return nil, errors.Wrapf(ErrOverflow, "more than %d entries", MaxEntries)
			}
			p.add(t)
		}
	}
	return p, nil
}

// FromTypes builds a palette from an already ordered list of distinct types.
func FromTypes[T voxel.Type](types []T) (*Palette[T], error) {
	if len(types) > MaxEntries {
		return nil, errors.Wrapf(ErrOverflow, "%d entries", len(types))
	}
	p := newPalette[T]()
	for i, t := range types {
		if _, ok := p.lookup(t); ok {
			return nil, errors.Wrapf(ErrDuplicate, "%v at %d", t, i)
		}
		p.add(t)
	}
	return p, nil
}

func (p *Palette[T]) lookup(t T) (uint16, bool) {
	code := t.Code()
	if !p.assigned.Test(uint(code)) {
		return 0, false
	}
	if i := p.byCode[code]; p.types[i] == t {
		return i, true
	}
	i, ok := p.collided[t]
	return i, ok
}

// add appends t, which must not be present yet.
func (p *Palette[T]) add(t T) {
	i := uint16(len(p.types))
	code := t.Code()
	if p.assigned.Test(uint(code)) {
		if p.collided == nil {
			p.collided = make(map[T]uint16)
		}
		p.collided[t] = i
	} else {
		p.assigned.Set(uint(code))
		p.byCode[code] = i
	}
	p.types = append(p.types, t)
}

// Len returns the number of entries.
func (p *Palette[T]) Len() int { return len(p.types) }

// Width reports whether indices into p need 8 or 16 bits.
func (p *Palette[T]) Width() Width {
	if len(p.types) > MaxNarrow {
		return Wide
	}
	return Narrow
}

// Resolve returns the type at index i. i must have been produced by IndexOf on this palette.
func (p *Palette[T]) Resolve(i int) T {
	return p.types[i]
}

// IndexOf returns the index assigned to t. t must occur in the column the palette was built from.
func (p *Palette[T]) IndexOf(t T) uint16 {
	i, ok := p.lookup(t)
	if !ok {
		panic(fmt.Sprintf("palette: %v was never assigned an index", t))
	}
	return i
}

// Types returns a copy of the entries in index order.
func (p *Palette[T]) Types() []T {
	return append([]T(nil), p.types...)
}

// Codes returns the registry codes of the entries in index order.
func (p *Palette[T]) Codes() []uint16 {
	codes := make([]uint16, len(p.types))
	for i, t := range p.types {
		codes[i] = t.Code()
	}
	return codes
}

// SizeBytes approximates the heap held by p.
func (p *Palette[T]) SizeBytes() int {
	var zero T
	elem := int(unsafe.Sizeof(zero))
	// code table, bitset words, entries, and key plus value per collision
	return 2*len(p.byCode) + MaxEntries/8 + len(p.types)*elem + len(p.collided)*(elem+2)
}
