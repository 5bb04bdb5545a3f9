// Package demofile implements the command-stream container framing (C10):
// the demo-file header, the two command-header layouts (seekable demo-file
// mode and HLTV broadcast-fragment mode), Snappy-compressed body recovery,
// and the file-info seek-read-restore dance used to recover playback
// timing metadata.
package demofile

import (
	"fmt"
	"io"

	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/internal/varint"
	"github.com/arloliu/s2replay/protocol"
	"github.com/klauspost/compress/snappy"
)

// recordBufferSize bounds the scratch buffer a DemoFile keeps for
// reading+decompressing one command body at a time.
const recordBufferSize = 2 * 1024 * 1024

// headerIDSize is the length of the fixed demo-file stamp.
const headerIDSize = 8

var headerID = [headerIDSize]byte{'P', 'B', 'D', 'E', 'M', 'S', '2', 0}

// Header is the fixed-size prologue of a seekable demo file (§4.10 "Demo
// file framing").
type Header struct {
	Stamp              [headerIDSize]byte
	FileInfoOffset     int32
	SpawnGroupsOffset  int32
}

// CmdHeader describes one framed command: its kind, tick, compressed-body
// flag, body length, and how many bytes the header itself occupied (needed
// to unread it).
type CmdHeader struct {
	Cmd              protocol.DemoCommand
	BodyCompressed   bool
	Tick             int32
	BodySize         uint32
	HeaderSize       uint8
}

// Decompressor decodes a command body. Framing code depends on this
// interface rather than the concrete snappy package, mirroring the
// teacher's compress.Codec shape; the wire format this module speaks only
// ever uses one codec, so there is no accompanying registry/factory.
type Decompressor interface {
	// DecodedLen reports the decompressed size of src without decoding it.
	DecodedLen(src []byte) (int, error)
	// Decompress decodes src into dst, reusing its backing array when it
	// has enough capacity, and returns the decoded slice.
	Decompress(dst, src []byte) ([]byte, error)
}

type snappyDecompressor struct{}

func (snappyDecompressor) DecodedLen(src []byte) (int, error) {
	return snappy.DecodedLen(src)
}

func (snappyDecompressor) Decompress(dst, src []byte) ([]byte, error) {
	return snappy.Decode(dst, src)
}

// DemoFile wraps a seekable byte source and tracks the small amount of
// state (demo header, cached file info) that spans many command reads.
type DemoFile struct {
	r      io.ReadSeeker
	buf    []byte
	decomp Decompressor

	header   *Header
	fileInfo *protocol.FileInfo
}

// New wraps r for reading. Callers of the seekable demo-file framing must
// call ReadHeader once before any other method; HLTV-fragment callers skip
// straight to ReadCmdHeaderHLTV.
func New(r io.ReadSeeker) *DemoFile {
	return &DemoFile{r: r, buf: make([]byte, recordBufferSize), decomp: snappyDecompressor{}}
}

// IsEOF reports whether the stream's current position is its end.
func (d *DemoFile) IsEOF() (bool, error) {
	pos, err := d.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}

	end, err := d.r.Seek(0, io.SeekEnd)
	if err != nil {
		return false, err
	}

	if pos != end {
		if _, err := d.r.Seek(pos, io.SeekStart); err != nil {
			return false, err
		}
	}

	return pos == end, nil
}

// ReadHeader reads and validates the 8-byte magic plus the two little-endian
// offsets at the start of a seekable demo file. Must be called exactly once.
func (d *DemoFile) ReadHeader() (Header, error) {
	var h Header

	if _, err := io.ReadFull(d.r, h.Stamp[:]); err != nil {
		return Header{}, err
	}

	if h.Stamp != headerID {
		return Header{}, fmt.Errorf("%w: got %q", errs.ErrInvalidDemoStamp, h.Stamp[:])
	}

	var le [4]byte

	if _, err := io.ReadFull(d.r, le[:]); err != nil {
		return Header{}, err
	}

	h.FileInfoOffset = int32(le32(le))

	if _, err := io.ReadFull(d.r, le[:]); err != nil {
		return Header{}, err
	}

	h.SpawnGroupsOffset = int32(le32(le))

	d.header = &h

	return h, nil
}

// ReadCmdHeader reads one demo-file-mode command header: three uvarints,
// the first of which carries the compressed-body flag in its high bit
// (§4.10 "Demo file framing").
func (d *DemoFile) ReadCmdHeader() (CmdHeader, error) {
	if d.header == nil {
		return CmdHeader{}, errs.ErrDemoHeaderNotRead
	}

	br := byteReader{r: d.r}

	cmdRaw, cmdN, err := varint.ReadUvarint32(&br)
	if err != nil {
		return CmdHeader{}, err
	}

	compressed := cmdRaw&uint32(protocol.DemIsCompressed) != 0
	cmd := cmdRaw

	if compressed {
		cmd &^= uint32(protocol.DemIsCompressed)
	}

	tick, tickN, err := varint.ReadUvarint32(&br)
	if err != nil {
		return CmdHeader{}, err
	}

	size, sizeN, err := varint.ReadUvarint32(&br)
	if err != nil {
		return CmdHeader{}, err
	}

	return CmdHeader{
		Cmd:            protocol.DemoCommand(cmd),
		BodyCompressed: compressed,
		Tick:           int32(tick),
		BodySize:       size,
		HeaderSize:     uint8(cmdN + tickN + sizeN),
	}, nil
}

// ReadCmdHeaderHLTV reads one HLTV-fragment-mode command header: the same
// leading cmd uvarint, then a 4-byte LE tick, a single unknown byte, and a
// 4-byte LE size. No demo header precedes a fragment stream.
func (d *DemoFile) ReadCmdHeaderHLTV() (CmdHeader, error) {
	br := byteReader{r: d.r}

	cmdRaw, cmdN, err := varint.ReadUvarint32(&br)
	if err != nil {
		return CmdHeader{}, err
	}

	compressed := cmdRaw&uint32(protocol.DemIsCompressed) != 0
	cmd := cmdRaw

	if compressed {
		cmd &^= uint32(protocol.DemIsCompressed)
	}

	var le [4]byte

	if _, err := io.ReadFull(d.r, le[:]); err != nil {
		return CmdHeader{}, err
	}

	tick := le32(le)

	var unknown [1]byte
	if _, err := io.ReadFull(d.r, unknown[:]); err != nil {
		return CmdHeader{}, err
	}

	if _, err := io.ReadFull(d.r, le[:]); err != nil {
		return CmdHeader{}, err
	}

	size := le32(le)

	return CmdHeader{
		Cmd:            protocol.DemoCommand(cmd),
		BodyCompressed: compressed,
		Tick:           int32(tick),
		BodySize:       size,
		HeaderSize:     uint8(cmdN + 4 + 1 + 4),
	}, nil
}

// UnreadCmdHeader seeks back over a header this DemoFile just read, so the
// next read re-observes the same command (used by run-to-tick to stop
// exactly at the first command past the target tick).
func (d *DemoFile) UnreadCmdHeader(h CmdHeader) error {
	_, err := d.r.Seek(-int64(h.HeaderSize), io.SeekCurrent)

	return err
}

// ReadCmdBody reads a command's body, Snappy-decompressing it in place when
// the header's compressed flag is set. The returned slice aliases the
// DemoFile's internal scratch buffer and is only valid until the next
// ReadCmdBody call.
func (d *DemoFile) ReadCmdBody(h CmdHeader) ([]byte, error) {
	if int(h.BodySize) > len(d.buf) {
		d.buf = make([]byte, h.BodySize)
	}

	left := d.buf[:h.BodySize]

	if _, err := io.ReadFull(d.r, left); err != nil {
		return nil, err
	}

	if !h.BodyCompressed {
		return left, nil
	}

	n, err := d.decomp.DecodedLen(left)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy header: %w", errs.ErrWireFormat, err)
	}

	if 2*int(h.BodySize)+n > len(d.buf) {
		grown := make([]byte, h.BodySize+uint32(n))
		copy(grown, left)
		d.buf = grown
		left = d.buf[:h.BodySize]
	}

	right := d.buf[h.BodySize:]

	out, err := d.decomp.Decompress(right[:0:len(right)], left)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy decode: %w", errs.ErrWireFormat, err)
	}

	return out, nil
}

// SkipCmdBody advances past a command's body without reading it.
func (d *DemoFile) SkipCmdBody(h CmdHeader) error {
	_, err := d.r.Seek(int64(h.BodySize), io.SeekCurrent)

	return err
}

// ReadFileInfo seeks to the header's file-info offset, reads and decodes
// the CDemoFileInfo record found there, then restores the stream position
// (§4.10 "File info").
func (d *DemoFile) ReadFileInfo() (protocol.FileInfo, error) {
	if d.header == nil {
		return protocol.FileInfo{}, errs.ErrDemoHeaderNotRead
	}

	if d.fileInfo != nil {
		return *d.fileInfo, nil
	}

	backup, err := d.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return protocol.FileInfo{}, err
	}

	if _, err := d.r.Seek(int64(d.header.FileInfoOffset), io.SeekStart); err != nil {
		return protocol.FileInfo{}, err
	}

	h, err := d.ReadCmdHeader()
	if err != nil {
		return protocol.FileInfo{}, err
	}

	if h.Cmd != protocol.DemFileInfo {
		return protocol.FileInfo{}, fmt.Errorf("%w: got %d want DemFileInfo", errs.ErrUnexpectedCommand, h.Cmd)
	}

	body, err := d.ReadCmdBody(h)
	if err != nil {
		return protocol.FileInfo{}, err
	}

	fi, err := protocol.DecodeFileInfo(body)
	if err != nil {
		return protocol.FileInfo{}, err
	}

	if _, err := d.r.Seek(backup, io.SeekStart); err != nil {
		return protocol.FileInfo{}, err
	}

	d.fileInfo = &fi

	return fi, nil
}

// TicksPerSecond mirrors the engine's GetTicksPerSecond().
func (d *DemoFile) TicksPerSecond() (float32, error) {
	fi, err := d.ReadFileInfo()
	if err != nil {
		return 0, err
	}

	return float32(fi.PlaybackTicks) / fi.PlaybackTime, nil
}

// TicksPerFrame mirrors the engine's GetTicksPerFrame().
func (d *DemoFile) TicksPerFrame() (float32, error) {
	fi, err := d.ReadFileInfo()
	if err != nil {
		return 0, err
	}

	return float32(fi.PlaybackTicks) / float32(fi.PlaybackFrames), nil
}

// TotalTicks mirrors the engine's GetTotalTicks().
func (d *DemoFile) TotalTicks() (int32, error) {
	fi, err := d.ReadFileInfo()
	if err != nil {
		return 0, err
	}

	return fi.PlaybackTicks, nil
}

func le32(b [4]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// byteReader adapts an io.Reader to io.ByteReader one byte at a time, for
// internal/varint's ReadUvarint32.
type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (br *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(br.r, br.one[:]); err != nil {
		return 0, err
	}

	return br.one[0], nil
}
