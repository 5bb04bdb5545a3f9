package parser

import (
	"bytes"
	"math"
	"testing"

	"github.com/arloliu/s2replay/demofile"
	"github.com/arloliu/s2replay/entity"
	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/internal/varint"
	"github.com/arloliu/s2replay/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// seekBuf adapts a bytes.Reader so it satisfies io.ReadSeeker the same way
// an *os.File would (mirrors demofile's own test helper of the same name).
type seekBuf struct {
	*bytes.Reader
}

func newSeekBuf(b []byte) *seekBuf {
	return &seekBuf{Reader: bytes.NewReader(b)}
}

// bitWriter is a minimal LSB-first bit writer used only by this test file to
// construct synthetic sub-message streams without depending on an encoder
// package the repository doesn't otherwise need (mirrors fieldpath's test
// helper of the same name).
type bitWriter struct {
	buf      []byte
	bitBuf   uint64
	bitCount int
}

func (w *bitWriter) writeBits(v uint32, n int) {
	w.bitBuf |= uint64(v) << w.bitCount
	w.bitCount += n

	for w.bitCount >= 8 {
		w.buf = append(w.buf, byte(w.bitBuf))
		w.bitBuf >>= 8
		w.bitCount -= 8
	}
}

func (w *bitWriter) writeUBitVar(v uint32) {
	w.writeBits(v, 6) // values < 16 round-trip through the no-extension arm
}

func (w *bitWriter) writeUvarint32(v uint32) {
	var buf []byte
	buf = varint.AppendUvarint32(buf, v)

	for _, b := range buf {
		w.writeBits(uint32(b), 8)
	}
}

func (w *bitWriter) writeBytes(data []byte) {
	for _, b := range data {
		w.writeBits(uint32(b), 8)
	}
}

func (w *bitWriter) bytes() []byte {
	if w.bitCount > 0 {
		return append(append([]byte{}, w.buf...), byte(w.bitBuf))
	}

	return w.buf
}

// recordingVisitor captures every event it receives, for assertions.
type recordingVisitor struct {
	NopVisitor
	cmds     []protocol.DemoCommand
	packets  int
	tickEnds int
	entities []entity.DeltaHeader
}

func (v *recordingVisitor) OnCmd(_ *Context, header demofile.CmdHeader, _ []byte) error {
	v.cmds = append(v.cmds, header.Cmd)

	return nil
}

func (v *recordingVisitor) OnPacket(_ *Context, _ uint32, _ []byte) error {
	v.packets++

	return nil
}

func (v *recordingVisitor) OnEntity(_ *Context, delta entity.DeltaHeader, _ *entity.Entity) error {
	v.entities = append(v.entities, delta)

	return nil
}

func (v *recordingVisitor) OnTickEnd(_ *Context) error {
	v.tickEnds++

	return nil
}

// appendCmdHeader frames a command using the HLTV-fragment layout (no
// demo-file header required), so parser tests don't need to construct a
// seekable file prologue first.
func appendCmdHeader(buf []byte, cmd protocol.DemoCommand, tick uint32, body []byte) []byte {
	buf = varint.AppendUvarint32(buf, uint32(cmd))
	buf = append(buf, byte(tick), byte(tick>>8), byte(tick>>16), byte(tick>>24))
	buf = append(buf, 0) // unknown byte
	size := uint32(len(body))
	buf = append(buf, byte(size), byte(size>>8), byte(size>>16), byte(size>>24))
	buf = append(buf, body...)

	return buf
}

func newPacketBody(t *testing.T, svc protocol.SvcMessage, msg []byte) []byte {
	t.Helper()

	w := &bitWriter{}
	w.writeUBitVar(uint32(svc))
	w.writeUvarint32(uint32(len(msg)))
	w.writeBytes(msg)

	return w.bytes()
}

func wrapPacket(t *testing.T, cmd protocol.DemoCommand, tick uint32, svc protocol.SvcMessage, msg []byte) []byte {
	t.Helper()

	inner := newPacketBody(t, svc, msg)

	var packetMsg []byte
	packetMsg = protowire.AppendTag(packetMsg, 1, protowire.BytesType)
	packetMsg = protowire.AppendBytes(packetMsg, inner)

	return appendCmdHeader(nil, cmd, tick, packetMsg)
}

func newParserOver(t *testing.T, stream []byte, v Visitor) *Parser {
	t.Helper()

	df := demofile.New(newSeekBuf(stream))
	p, err := New(df, WithVisitor(v), WithHLTVFraming(true))
	require.NoError(t, err)

	return p
}

func TestRunToEndStopsAtDemStop(t *testing.T) {
	var stream []byte
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 1, nil)
	stream = appendCmdHeader(stream, protocol.DemStop, 1, nil)
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 99, nil) // must not be reached

	v := &recordingVisitor{}
	p := newParserOver(t, stream, v)

	require.NoError(t, p.RunToEnd())
	assert.Equal(t, []protocol.DemoCommand{protocol.DemSyncTick, protocol.DemStop}, v.cmds)
}

func TestHandleCmdFiresOnTickEndOnlyWhenTickChanges(t *testing.T) {
	var stream []byte
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 0, nil)
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 0, nil)
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 1, nil)
	stream = appendCmdHeader(stream, protocol.DemStop, 1, nil)

	v := &recordingVisitor{}
	p := newParserOver(t, stream, v)

	require.NoError(t, p.RunToEnd())
	// tick: -1 -> 0 (change), 0 -> 0 (no change), 0 -> 1 (change), 1 -> 1 (DemStop, no change)
	assert.Equal(t, 2, v.tickEnds)
}

func TestHandleCmdPacketDispatchesServerInfoAndReportsOnPacket(t *testing.T) {
	var si []byte
	si = protowire.AppendTag(si, 16, protowire.Fixed32Type)
	si = protowire.AppendFixed32(si, math.Float32bits(1.0/60.0))

	stream := wrapPacket(t, protocol.DemPacket, 0, protocol.SvcServerInfo, si)

	v := &recordingVisitor{}
	p := newParserOver(t, stream, v)

	require.NoError(t, p.RunToEnd())
	assert.Equal(t, 1, v.packets)
	assert.Equal(t, float32(1.0/60.0), p.ctx.TickInterval())
	assert.Equal(t, int32(3600), p.ctx.fullPacketIntv)
}

func TestHandleSvcPacketEntitiesErrorsBeforeSerializersReady(t *testing.T) {
	p := newParserOver(t, nil, &recordingVisitor{})

	var pe []byte
	pe = protowire.AppendTag(pe, 2, protowire.VarintType)
	pe = protowire.AppendVarint(pe, 0) // updated_entries = 0

	err := p.handleSvcPacketEntities(pe)
	assert.ErrorIs(t, err, errs.ErrSerializersNotReady)
}

func TestRunToTickRejectsNegativeTarget(t *testing.T) {
	p := newParserOver(t, nil, &recordingVisitor{})

	err := p.RunToTick(-2)
	assert.ErrorIs(t, err, errs.ErrNegativeTargetTick)
}

func TestRunToTickStopsAndUnreadsPastTarget(t *testing.T) {
	var stream []byte
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 0, nil)
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 5, nil)
	stream = appendCmdHeader(stream, protocol.DemSyncTick, 10, nil)

	v := &recordingVisitor{}
	p := newParserOver(t, stream, v)

	require.NoError(t, p.RunToTick(5))
	assert.Equal(t, []protocol.DemoCommand{protocol.DemSyncTick, protocol.DemSyncTick}, v.cmds)
	assert.Equal(t, int32(5), p.ctx.Tick())

	// the tick-10 command was unread: a subsequent RunToEnd should still see it.
	require.NoError(t, p.RunToEnd())
	assert.Equal(t, int32(10), p.ctx.Tick())
}
