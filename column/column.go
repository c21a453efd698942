// Package column compresses a chunk column of 24 stacked 16^3 sections into
// per-section octrees that share one palette.
package column

import (
	"github.com/pkg/errors"

	"github.com/astei/sectiontree/coord"
	"github.com/astei/sectiontree/octree"
	"github.com/astei/sectiontree/palette"
	"github.com/astei/sectiontree/voxel"
)

const (
	// SectionEdge is the edge length of a section.
	SectionEdge = coord.Edge
	// SectionVolume is the number of voxels in a section.
	SectionVolume = SectionEdge * SectionEdge * SectionEdge
	// SectionCount is the number of sections in a column, bottom to top.
	SectionCount = 24
)

var (
	// ErrShapeMismatch is returned when a column is not 24 sections of 4096 voxels.
	ErrShapeMismatch = errors.New("column: shape mismatch")
	// ErrIndexOutOfRange is returned by Assemble when a tree refers past the end of the palette.
	ErrIndexOutOfRange = errors.New("column: palette index out of range")
)

// Column is an immutable compressed chunk column. Exactly one of narrow and
// wide is set, matching the palette width. Safe for concurrent reads.
type Column[T voxel.Type] struct {
	palette *palette.Palette[T]
	narrow  []octree.Tree[uint8]
	wide    []octree.Tree[uint16]
}

// Assemble builds a column from a palette and already built section trees,
// checking that they agree with each other.
func Assemble[T voxel.Type, I octree.Index](p *palette.Palette[T], trees []octree.Tree[I]) (*Column[T], error) {
	if len(trees) != SectionCount {
		return nil, errors.Wrapf(ErrShapeMismatch, "got %d sections, want %d", len(trees), SectionCount)
	}
	for i, t := range trees {
		if t.Edge() != SectionEdge {
			return nil, errors.Wrapf(ErrShapeMismatch, "section %d has edge %d, want %d", i, t.Edge(), SectionEdge)
		}
		var bad error
		t.Walk(func(n octree.Node[I], _ int) {
			if bad != nil {
				return
			}
			switch n.Kind() {
			case octree.Uniform:
				if int(n.Value()) >= p.Len() {
					bad = errors.Wrapf(ErrIndexOutOfRange, "section %d: index %d, palette has %d", i, n.Value(), p.Len())
				}
			case octree.Dense:
				for _, v := range n.Values() {
					if int(v) >= p.Len() {
						bad = errors.Wrapf(ErrIndexOutOfRange, "section %d: index %d, palette has %d", i, v, p.Len())
						return
					}
				}
			}
		})
		if bad != nil {
			return nil, bad
		}
	}

	c := &Column[T]{palette: p}
	switch ts := any(trees).(type) {
	case []octree.Tree[uint8]:
		if p.Width() != palette.Narrow {
			return nil, errors.Errorf("column: %d-bit trees for a %d-bit palette", palette.Narrow, p.Width())
		}
		c.narrow = append([]octree.Tree[uint8](nil), ts...)
	case []octree.Tree[uint16]:
		if p.Width() != palette.Wide {
			return nil, errors.Errorf("column: %d-bit trees for a %d-bit palette", palette.Wide, p.Width())
		}
		c.wide = append([]octree.Tree[uint16](nil), ts...)
	default:
		return nil, errors.Errorf("column: unsupported index type %T", trees)
	}
	return c, nil
}

// Get returns the voxel at (x, y, z) inside the given section. section must be
// in [0, 24) and coordinates in [0, 16).
func (c *Column[T]) Get(section, x, y, z int) T {
	if c.narrow != nil {
		return c.palette.Resolve(int(c.narrow[section].Get(x, y, z)))
	}
	return c.palette.Resolve(int(c.wide[section].Get(x, y, z)))
}

// At is Get for a packed position.
func (c *Column[T]) At(section int, p coord.Pos) T {
	x, y, z := p.Unpack()
	return c.Get(section, int(x), int(y), int(z))
}

// Palette returns the shared palette.
func (c *Column[T]) Palette() *palette.Palette[T] { return c.palette }

// Width returns the index width of the trees.
func (c *Column[T]) Width() palette.Width { return c.palette.Width() }

// NarrowTrees returns the section trees of a narrow column, or nil.
func (c *Column[T]) NarrowTrees() []octree.Tree[uint8] { return c.narrow }

// WideTrees returns the section trees of a wide column, or nil.
func (c *Column[T]) WideTrees() []octree.Tree[uint16] { return c.wide }

// Stats sums the tree statistics of every section and adds the palette footprint to Bytes.
func (c *Column[T]) Stats() octree.Stats {
	var s octree.Stats
	for _, t := range c.narrow {
		s = s.Add(t.Stats())
	}
	for _, t := range c.wide {
		s = s.Add(t.Stats())
	}
	s.Bytes += c.palette.SizeBytes()
	return s
}

// Sections expands the column back into 24 flat sections in row-major order.
func (c *Column[T]) Sections() [][]T {
	sections := make([][]T, SectionCount)
	for s := range sections {
		sections[s] = make([]T, SectionVolume)
		for off := range sections[s] {
			sections[s][off] = c.At(s, coord.FromOffset(off))
		}
	}
	return sections
}
