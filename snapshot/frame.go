package snapshot

import (
	"encoding/binary"
	"io"

	"github.com/edaniels/golog"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// maxFrameSize bounds the uncompressed size of a single frame. A column of
// nothing but dense 16-bit leaves stays well below it.
const maxFrameSize = 16 << 20

// frameHeader prefixes every zstd frame in a snapshot.
type frameHeader struct {
	Compressed   uint32
	Uncompressed uint32
}

func writeFrame(w io.Writer, payload []byte, level zstd.EncoderLevel, logger golog.Logger) error {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(payload, nil)
	if err := enc.Close(); err != nil {
		return err
	}

	logger.Debugf("compressed %d bytes, uncompressed %d", len(compressed), len(payload))

	h := frameHeader{Compressed: uint32(len(compressed)), Uncompressed: uint32(len(payload))}
	if err := binary.Write(w, binary.BigEndian, h); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// readFrame reads one frame. The decoder never grows its output past the
// length the header announces.
func readFrame(r io.Reader) ([]byte, error) {
	var h frameHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, readError(err, "frame header")
	}
	if h.Compressed > maxFrameSize || h.Uncompressed > maxFrameSize {
		return nil, errors.Wrapf(ErrCorrupt, "frame of %d/%d bytes", h.Compressed, h.Uncompressed)
	}

	compressed := make([]byte, h.Compressed)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, readError(err, "frame")
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxFrameSize),
		zstd.WithDecodeAllCapLimit(true),
	)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, make([]byte, 0, h.Uncompressed))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%v", err)
	}
	if len(out) != int(h.Uncompressed) {
		return nil, errors.Wrapf(ErrCorrupt, "frame decompressed to %d bytes, header says %d", len(out), h.Uncompressed)
	}
	return out, nil
}

// readError marks input that ends early as corrupt.
func readError(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrCorrupt, "%s truncated", what)
	}
	return errors.Wrapf(err, "snapshot: reading %s", what)
}
