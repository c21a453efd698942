// Package coord packs section-local voxel coordinates into a single integer key.
//
// Layout: y<<16 | x<<8 | z. Each field gets its own byte so extraction is a
// shift and a mask. Callers must only pass coordinates in [0, 15]; anything
// else is undefined and not checked.
package coord

const (
	// Edge is the edge length of a section.
	Edge = 16

	shiftX = 8
	shiftY = 16
	mask4  = 0x0f
)

// Pos is a packed section-local position.
type Pos uint32

// Pack converts local (x, y, z) (0..15) to a packed position.
func Pack(x, y, z uint8) Pos {
	return Pos(uint32(y)<<shiftY | uint32(x)<<shiftX | uint32(z))
}

// Unpack is the inverse of Pack.
func (p Pos) Unpack() (x, y, z uint8) {
	x = uint8((p >> shiftX) & mask4)
	y = uint8((p >> shiftY) & mask4)
	z = uint8(p & mask4)
	return
}

// X returns the x field.
func (p Pos) X() uint8 { return uint8((p >> shiftX) & mask4) }

// Y returns the y field.
func (p Pos) Y() uint8 { return uint8((p >> shiftY) & mask4) }

// Z returns the z field.
func (p Pos) Z() uint8 { return uint8(p & mask4) }

// Offset returns the row-major offset of p inside a section: x + z*16 + y*256.
func (p Pos) Offset() int {
	x, y, z := p.Unpack()
	return int(x) + int(z)*Edge + int(y)*Edge*Edge
}

// FromOffset is the inverse of Pos.Offset for offsets in [0, 4096).
func FromOffset(off int) Pos {
	return Pack(uint8(off%Edge), uint8(off/(Edge*Edge)), uint8((off/Edge)%Edge))
}
