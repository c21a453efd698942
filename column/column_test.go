package column

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/edaniels/golog"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/astei/sectiontree/config"
	"github.com/astei/sectiontree/coord"
	"github.com/astei/sectiontree/octree"
	"github.com/astei/sectiontree/palette"
	"github.com/astei/sectiontree/voxel"
)

const (
	air   = voxel.Code(0)
	stone = voxel.Code(1)
	dirt  = voxel.Code(3)
)

func uniformColumn(v voxel.Code) [][]voxel.Code {
	sections := make([][]voxel.Code, SectionCount)
	for s := range sections {
		sections[s] = make([]voxel.Code, SectionVolume)
		for i := range sections[s] {
			sections[s][i] = v
		}
	}
	return sections
}

// terrain is stone below a wavy surface, dirt on top and air above, with ore
// sprinkled in from a palette of the given size.
func terrain(seed int64, kinds int) [][]voxel.Code {
	rng := rand.New(rand.NewSource(seed))
	sections := uniformColumn(air)
	for s := range sections {
		for off := range sections[s] {
			p := coord.FromOffset(off)
			height := 100 + int(p.X()+p.Z())%7
			y := s*SectionEdge + int(p.Y())
			switch {
			case y < height-3:
				sections[s][off] = stone
				if rng.Intn(20) == 0 {
					sections[s][off] = voxel.Code(10 + rng.Intn(kinds))
				}
			case y < height:
				sections[s][off] = dirt
			}
		}
	}
	return sections
}

func assertRoundTrip(t *testing.T, c *Column[voxel.Code], sections [][]voxel.Code) {
	t.Helper()
	for s := 0; s < SectionCount; s++ {
		for y := 0; y < SectionEdge; y++ {
			for z := 0; z < SectionEdge; z++ {
				for x := 0; x < SectionEdge; x++ {
					want := sections[s][x+z*SectionEdge+y*SectionEdge*SectionEdge]
					if got := c.Get(s, x, y, z); got != want {
						t.Fatalf("Get(%d, %d, %d, %d) = %d, want %d", s, x, y, z, got, want)
					}
				}
			}
		}
	}
}

func TestBuildRoundTrip(t *testing.T) {
	logger := golog.NewTestLogger(t)

	t.Run("narrow", func(t *testing.T) {
		sections := terrain(1, 40)
		c, err := Build(sections, WithLogger(logger))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.Width(), test.ShouldEqual, palette.Narrow)
		test.That(t, c.NarrowTrees(), test.ShouldHaveLength, SectionCount)
		test.That(t, c.WideTrees(), test.ShouldBeNil)
		assertRoundTrip(t, c, sections)
		test.That(t, cmp.Diff(c.Sections(), sections), test.ShouldBeEmpty)
	})

	t.Run("wide", func(t *testing.T) {
		sections := terrain(2, 600)
		c, err := Build(sections, WithLogger(logger))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.Width(), test.ShouldEqual, palette.Wide)
		test.That(t, c.WideTrees(), test.ShouldHaveLength, SectionCount)
		test.That(t, c.NarrowTrees(), test.ShouldBeNil)
		assertRoundTrip(t, c, sections)
	})

	t.Run("packed positions", func(t *testing.T) {
		sections := terrain(3, 5)
		c, err := Build(sections)
		test.That(t, err, test.ShouldBeNil)
		p := coord.Pack(4, 9, 13)
		test.That(t, c.At(6, p), test.ShouldEqual, sections[6][p.Offset()])
	})
}

func TestUniformColumnIsMaximallyCompressed(t *testing.T) {
	c, err := Build(uniformColumn(stone))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Palette().Len(), test.ShouldEqual, 1)
	for _, tree := range c.NarrowTrees() {
		test.That(t, tree.Edge(), test.ShouldEqual, SectionEdge)
		test.That(t, tree.Root().Kind(), test.ShouldEqual, octree.Uniform)
		test.That(t, tree.Root().Value(), test.ShouldEqual, uint8(0))
	}
	s := c.Stats()
	test.That(t, s.Nodes(), test.ShouldEqual, SectionCount)
	test.That(t, s.MaxDepth, test.ShouldEqual, 1)
}

func TestWidthBoundary(t *testing.T) {
	distinct := func(n int) [][]voxel.Code {
		sections := uniformColumn(air)
		for i := 0; i < n; i++ {
			sections[i%SectionCount][i/SectionCount] = voxel.Code(i)
		}
		return sections
	}

	c, err := Build(distinct(255))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Palette().Len(), test.ShouldEqual, 255)
	test.That(t, c.Width(), test.ShouldEqual, palette.Narrow)

	c, err = Build(distinct(256))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Palette().Len(), test.ShouldEqual, 256)
	test.That(t, c.Width(), test.ShouldEqual, palette.Wide)
	assertRoundTrip(t, c, distinct(256))
}

func TestDeterminism(t *testing.T) {
	sections := terrain(9, 30)
	a, err := Build(sections, WithWorkers(8))
	test.That(t, err, test.ShouldBeNil)
	b, err := Build(sections, WithConfig(config.Config{Sequential: true}))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, a.Palette().Types(), test.ShouldResemble, b.Palette().Types())
	test.That(t, cmp.Diff(a.NarrowTrees(), b.NarrowTrees()), test.ShouldBeEmpty)
}

func TestShapeValidation(t *testing.T) {
	t.Run("23 sections", func(t *testing.T) {
		c, err := Build(uniformColumn(air)[:23])
		test.That(t, c, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
	})

	for _, n := range []int{SectionVolume - 1, SectionVolume + 1} {
		sections := uniformColumn(air)
		sections[5] = make([]voxel.Code, n)
		c, err := Build(sections)
		test.That(t, c, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
	}

	t.Run("every violation is reported", func(t *testing.T) {
		sections := uniformColumn(air)[:20]
		sections[0] = sections[0][:10]
		sections[7] = nil
		_, err := Build(sections)
		test.That(t, multierr.Errors(err), test.ShouldHaveLength, 3)
	})
}

func TestConcurrentReads(t *testing.T) {
	sections := terrain(5, 12)
	c, err := Build(sections)
	test.That(t, err, test.ShouldBeNil)

	var wg sync.WaitGroup
	for s := 0; s < SectionCount; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for off := 0; off < SectionVolume; off++ {
				if got := c.At(s, coord.FromOffset(off)); got != sections[s][off] {
					t.Errorf("section %d offset %d: got %d want %d", s, off, got, sections[s][off])
					return
				}
			}
		}(s)
	}
	wg.Wait()
}

func TestAssemble(t *testing.T) {
	c, err := Build(terrain(4, 8))
	test.That(t, err, test.ShouldBeNil)

	t.Run("rebuilds an equivalent column", func(t *testing.T) {
		again, err := Assemble(c.Palette(), c.NarrowTrees())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cmp.Diff(again.Sections(), c.Sections()), test.ShouldBeEmpty)
	})

	t.Run("wrong section count", func(t *testing.T) {
		_, err := Assemble(c.Palette(), c.NarrowTrees()[:3])
		test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
	})

	t.Run("width mismatch", func(t *testing.T) {
		wide := make([]octree.Tree[uint16], SectionCount)
		for i := range wide {
			wide[i], err = octree.Build(make([]uint16, SectionVolume), SectionEdge)
			test.That(t, err, test.ShouldBeNil)
		}
		_, err := Assemble(c.Palette(), wide)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("index past the palette", func(t *testing.T) {
		p, err := palette.FromTypes([]voxel.Code{air})
		test.That(t, err, test.ShouldBeNil)
		_, err = Assemble(p, c.NarrowTrees())
		test.That(t, errors.Is(err, ErrIndexOutOfRange), test.ShouldBeTrue)
	})
}
