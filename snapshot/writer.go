// Package snapshot encodes built columns into a compact zstd-framed stream and decodes them back.
//
// Layout, all big-endian:
//
//	header      magic u16, version u8, width u8, sections u8, palette length u32
//	palette     one u16 registry code per entry, in index order
//	nodes       zstd frame: pre-order node stream of every section
//	extra       zstd frame: NBT summary compound
//
// A zstd frame is u32 compressed length, u32 uncompressed length, then the data.
// In the node stream each node is a kind byte followed, for uniform leaves,
// by one index and, for dense leaves, by 64 indices; branches are followed by
// their eight children. Indices are one byte wide for 8-bit columns and two
// otherwise.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/edaniels/golog"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/astei/sectiontree/column"
	"github.com/astei/sectiontree/config"
	"github.com/astei/sectiontree/nbt"
	"github.com/astei/sectiontree/octree"
	"github.com/astei/sectiontree/palette"
	"github.com/astei/sectiontree/voxel"
)

const snapshotMagic = 0x5EC7
const snapshotLatestVersion = 1

type header struct {
	Magic      uint16
	Version    uint8
	Width      uint8
	Sections   uint8
	PaletteLen uint32
}

// summary is the trailing metadata block, for tools that only want the shape of a column.
type summary struct {
	Width    uint8   `nbt:"width"`
	Palette  []int32 `nbt:"palette"`
	Uniform  int32   `nbt:"uniform"`
	Dense    int32   `nbt:"dense"`
	Branch   int32   `nbt:"branch"`
	MaxDepth int32   `nbt:"max_depth"`
}

// Option configures Encode.
type Option func(*options)

type options struct {
	level  zstd.EncoderLevel
	logger golog.Logger
}

// WithLevel sets the zstd level of both frames.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(o *options) { o.level = level }
}

// WithLogger sets the logger frame sizes are reported to.
func WithLogger(logger golog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig applies the snapshot level of cfg. An invalid level leaves the default in place.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		if level, err := cfg.Level(); err == nil {
			o.level = level
		}
	}
}

func newOptions(opts []Option) options {
	o := options{level: zstd.SpeedDefault, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encode writes c to w.
func Encode[T voxel.Type](w io.Writer, c *column.Column[T], opts ...Option) error {
	var nodes bytes.Buffer
	if c.Width() == palette.Narrow {
		for _, t := range c.NarrowTrees() {
			writeTree(&nodes, t, 1)
		}
	} else {
		for _, t := range c.WideTrees() {
			writeTree(&nodes, t, 2)
		}
	}

	sw := &writer{writer: w, opts: newOptions(opts)}
	return sw.writeColumn(c.Palette().Codes(), c.Width(), c.Stats(), nodes.Bytes())
}

func writeTree[I octree.Index](out *bytes.Buffer, t octree.Tree[I], size int) {
	var tmp [2]byte
	putIndex := func(v I) {
		if size == 1 {
			out.WriteByte(byte(v))
			return
		}
		binary.BigEndian.PutUint16(tmp[:], uint16(v))
		out.Write(tmp[:])
	}
	t.Walk(func(n octree.Node[I], _ int) {
		out.WriteByte(byte(n.Kind()))
		switch n.Kind() {
		case octree.Uniform:
			putIndex(n.Value())
		case octree.Dense:
			for _, v := range n.Values() {
				putIndex(v)
			}
		}
	})
}

type writer struct {
	writer io.Writer
	opts   options
}

func (w *writer) writeColumn(codes []uint16, width palette.Width, stats octree.Stats, nodes []byte) (err error) {
	if err = w.writeHeader(len(codes), width); err != nil {
		return
	}
	if err = binary.Write(w.writer, binary.BigEndian, codes); err != nil {
		return
	}
	if err = w.writeFrame(nodes); err != nil {
		return
	}
	return w.writeSummary(codes, width, stats)
}

func (w *writer) writeHeader(paletteLen int, width palette.Width) error {
	h := header{
		Magic:      snapshotMagic,
		Version:    snapshotLatestVersion,
		Width:      uint8(width),
		Sections:   column.SectionCount,
		PaletteLen: uint32(paletteLen),
	}
	return binary.Write(w.writer, binary.BigEndian, h)
}

func (w *writer) writeSummary(codes []uint16, width palette.Width, stats octree.Stats) error {
	s := summary{
		Width:    uint8(width),
		Palette:  make([]int32, len(codes)),
		Uniform:  int32(stats.Uniform),
		Dense:    int32(stats.Dense),
		Branch:   int32(stats.Branch),
		MaxDepth: int32(stats.MaxDepth),
	}
	for i, c := range codes {
		s.Palette[i] = int32(c)
	}

	var buf bytes.Buffer
	if err := nbt.NewEncoder(&buf).Encode(s); err != nil {
		return err
	}
	return w.writeFrame(buf.Bytes())
}

func (w *writer) writeFrame(payload []byte) error {
	return writeFrame(w.writer, payload, w.opts.level, w.opts.logger)
}
