package snapshot

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/astei/sectiontree/column"
	"github.com/astei/sectiontree/octree"
	"github.com/astei/sectiontree/palette"
	"github.com/astei/sectiontree/voxel"
)

// ErrBadMagic is returned when the input does not start with the snapshot magic.
var ErrBadMagic = errors.New("snapshot: bad magic")

// ErrUnsupportedVersion is returned for a format version this package cannot read.
var ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

// ErrCorrupt is returned for truncated or otherwise malformed input.
var ErrCorrupt = errors.New("snapshot: corrupt data")

// Decode reads a column written by Encode. fromCode maps registry codes back to voxel types.
func Decode[T voxel.Type](r io.Reader, fromCode func(uint16) T) (*column.Column[T], error) {
	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, readError(err, "header")
	}
	switch {
	case h.Magic != snapshotMagic:
		return nil, errors.Wrapf(ErrBadMagic, "%#04x", h.Magic)
	case h.Version != snapshotLatestVersion:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%d", h.Version)
	case h.Sections != column.SectionCount:
		return nil, errors.Wrapf(ErrCorrupt, "%d sections", h.Sections)
	case h.PaletteLen == 0 || h.PaletteLen > palette.MaxEntries:
		return nil, errors.Wrapf(ErrCorrupt, "palette length %d", h.PaletteLen)
	}

	codes := make([]uint16, h.PaletteLen)
	if err := binary.Read(r, binary.BigEndian, codes); err != nil {
		return nil, readError(err, "palette")
	}
	types := make([]T, len(codes))
	for i, c := range codes {
		types[i] = fromCode(c)
	}
	p, err := palette.FromTypes(types)
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%v", err)
	}
	if uint8(p.Width()) != h.Width {
		return nil, errors.Wrapf(ErrCorrupt, "%d-bit header for a palette of %d", h.Width, p.Len())
	}

	nodes, err := readFrame(r)
	if err != nil {
		return nil, err
	}

	var c *column.Column[T]
	if p.Width() == palette.Narrow {
		c, err = decodeTrees[T, uint8](p, nodes, 1)
	} else {
		c, err = decodeTrees[T, uint16](p, nodes, 2)
	}
	if err != nil {
		return nil, err
	}

	if _, err := readFrame(r); err != nil {
		return nil, errors.Wrap(err, "summary")
	}
	return c, nil
}

func decodeTrees[T voxel.Type, I octree.Index](p *palette.Palette[T], nodes []byte, size int) (*column.Column[T], error) {
	nr := &nodeReader[I]{data: nodes, size: size}
	trees := make([]octree.Tree[I], column.SectionCount)
	for i := range trees {
		root, err := nr.readNode(0)
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", i)
		}
		if trees[i], err = octree.NewTree(root, column.SectionEdge); err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "section %d: %v", i, err)
		}
	}
	if len(nr.data) != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "%d trailing node bytes", len(nr.data))
	}

	c, err := column.Assemble(p, trees)
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%v", err)
	}
	return c, nil
}

// nodeReader consumes a pre-order node stream.
type nodeReader[I octree.Index] struct {
	data []byte
	size int
}

// maxDepth is the number of branch levels a section can hold above its dense leaves.
const maxDepth = 2

func (nr *nodeReader[I]) readNode(depth int) (octree.Node[I], error) {
	if len(nr.data) == 0 {
		return octree.Node[I]{}, errors.Wrap(ErrCorrupt, "node stream ends early")
	}
	kind := octree.Kind(nr.data[0])
	nr.data = nr.data[1:]

	switch kind {
	case octree.Uniform:
		v, err := nr.readIndex()
		if err != nil {
			return octree.Node[I]{}, err
		}
		return octree.NewUniform(v), nil
	case octree.Dense:
		var values [octree.DenseVolume]I
		for i := range values {
			v, err := nr.readIndex()
			if err != nil {
				return octree.Node[I]{}, err
			}
			values[i] = v
		}
		return octree.NewDense(values), nil
	case octree.Branch:
		if depth >= maxDepth {
			return octree.Node[I]{}, errors.Wrap(ErrCorrupt, "branch nested too deep")
		}
		var children [8]octree.Node[I]
		for i := range children {
			child, err := nr.readNode(depth + 1)
			if err != nil {
				return octree.Node[I]{}, err
			}
			children[i] = child
		}
		return octree.NewBranch(children), nil
	default:
		return octree.Node[I]{}, errors.Wrapf(ErrCorrupt, "unknown node kind %d", kind)
	}
}

func (nr *nodeReader[I]) readIndex() (I, error) {
	if len(nr.data) < nr.size {
		return 0, errors.Wrap(ErrCorrupt, "node stream ends early")
	}
	var v I
	if nr.size == 1 {
		v = I(nr.data[0])
	} else {
		v = I(binary.BigEndian.Uint16(nr.data))
	}
	nr.data = nr.data[nr.size:]
	return v, nil
}
