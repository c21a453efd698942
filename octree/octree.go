// Package octree implements the per-section sparse octree: homogeneous cubes collapse into a
// single uniform leaf, non-uniform cubes of the minimal edge are stored densely, and everything
// else branches into eight octants.
package octree

import (
	"github.com/pkg/errors"
)

// Each node is a uniform leaf holding one index, a dense leaf holding MinEdge^3 indices, or a
// branch with eight children.
const (
	Uniform = Kind(iota)
	Dense
	Branch
)

const (
	// MinEdge is the edge below which cubes are never split.
	MinEdge = 4
	// DenseVolume is the number of indices in a dense leaf.
	DenseVolume = MinEdge * MinEdge * MinEdge
)

// ErrShape is returned when an index array or a decoded tree does not describe a valid cube.
var ErrShape = errors.New("octree: invalid shape")

// Index is the palette index width a tree is built over.
type Index interface {
	~uint8 | ~uint16
}

// Kind represents the possible kinds of node in an octree.
type Kind uint8

func (k Kind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case Dense:
		return "dense"
	case Branch:
		return "branch"
	default:
		return "unknown"
	}
}

// Node is a tagged union over the three node kinds. Only the payload matching kind is set.
type Node[I Index] struct {
	kind     Kind
	value    I
	values   *[DenseVolume]I
	children *[8]Node[I]
}

// NewUniform creates a leaf where every voxel has index v.
func NewUniform[I Index](v I) Node[I] {
	return Node[I]{kind: Uniform, value: v}
}

// NewDense creates a leaf holding values in row-major order x + z*4 + y*16.
func NewDense[I Index](values [DenseVolume]I) Node[I] {
	return Node[I]{kind: Dense, values: &values}
}

// NewBranch creates an internal node; children are in octant order (see Octant).
func NewBranch[I Index](children [8]Node[I]) Node[I] {
	return Node[I]{kind: Branch, children: &children}
}

// Kind returns the node kind.
func (n Node[I]) Kind() Kind { return n.kind }

// Value returns the index of a uniform leaf.
func (n Node[I]) Value() I { return n.value }

// Values returns a copy of the indices of a dense leaf.
func (n Node[I]) Values() [DenseVolume]I {
	if n.values == nil {
		return [DenseVolume]I{}
	}
	return *n.values
}

// Child returns the child of a branch covering octant i.
func (n Node[I]) Child(i int) Node[I] {
	return n.children[i]
}

// Equal reports whether n and o describe structurally identical trees.
func (n Node[I]) Equal(o Node[I]) bool {
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case Uniform:
		return n.value == o.value
	case Dense:
		return *n.values == *o.values
	case Branch:
		for i := range n.children {
			if !n.children[i].Equal(o.children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Octant returns the child slot for a point, given which halves of the parent
// cube it falls in. Bit 0 is x, bit 1 is z, bit 2 is y.
func Octant(upperX, upperY, upperZ bool) int {
	i := 0
	if upperX {
		i |= 1
	}
	if upperZ {
		i |= 2
	}
	if upperY {
		i |= 4
	}
	return i
}

// OctantOrigin is the inverse of Octant: the offset of child i inside a parent
// whose children have edge half.
func OctantOrigin(i, half int) (x, y, z int) {
	return (i & 1) * half, (i >> 2) * half, ((i >> 1) & 1) * half
}
