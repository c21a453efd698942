package octree

// builder reads sub-cubes out of a flat row-major index array whose rows are stride long.
type builder[I Index] struct {
	indices []I
	stride  int
}

func (b *builder[I]) at(x, y, z int) I {
	return b.indices[x+z*b.stride+y*b.stride*b.stride]
}

// build compresses the cube of the given size whose minimum corner is (x, y, z).
func (b *builder[I]) build(x, y, z, size int) Node[I] {
	if v, ok := b.uniform(x, y, z, size); ok {
		return NewUniform(v)
	}

	if size == MinEdge {
		var values [DenseVolume]I
		for dy := 0; dy < MinEdge; dy++ {
			for dz := 0; dz < MinEdge; dz++ {
				for dx := 0; dx < MinEdge; dx++ {
					values[dx+dz*MinEdge+dy*MinEdge*MinEdge] = b.at(x+dx, y+dy, z+dz)
				}
			}
		}
		return NewDense(values)
	}

	half := size / 2
	var children [8]Node[I]
	for i := range children {
		ox, oy, oz := OctantOrigin(i, half)
		children[i] = b.build(x+ox, y+oy, z+oz, half)
	}
	return NewBranch(children)
}

// uniform reports whether every index in the cube equals the first one,
// stopping at the first mismatch.
func (b *builder[I]) uniform(x, y, z, size int) (I, bool) {
	first := b.at(x, y, z)
	for dy := 0; dy < size; dy++ {
		for dz := 0; dz < size; dz++ {
			row := x + (z+dz)*b.stride + (y+dy)*b.stride*b.stride
			for _, v := range b.indices[row : row+size] {
				if v != first {
					return first, false
				}
			}
		}
	}
	return first, true
}
