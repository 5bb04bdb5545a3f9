package parser

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/arloliu/s2replay/baseline"
	"github.com/arloliu/s2replay/bitread"
	"github.com/arloliu/s2replay/demofile"
	"github.com/arloliu/s2replay/entity"
	"github.com/arloliu/s2replay/errs"
	"github.com/arloliu/s2replay/fields"
	"github.com/arloliu/s2replay/internal/options"
	"github.com/arloliu/s2replay/internal/pool"
	"github.com/arloliu/s2replay/protocol"
	"github.com/arloliu/s2replay/serializer"
	"github.com/arloliu/s2replay/stringtable"
)

// Option configures a Parser at construction time.
type Option = options.Option[*Parser]

// WithVisitor installs the Visitor that receives parse events. Without
// one, a Parser runs with NopVisitor and observes nothing.
func WithVisitor(v Visitor) Option {
	return options.NoError(func(p *Parser) {
		p.visitor = v
	})
}

// WithHLTVFraming selects the HLTV broadcast-fragment command-header
// layout instead of the seekable demo-file layout (§4.10).
func WithHLTVFraming(enabled bool) Option {
	return options.NoError(func(p *Parser) {
		p.hltv = enabled
	})
}

// WithBufferSize sets the initial size of the pooled scratch buffer used
// while iterating a packet's sub-messages. The buffer grows on demand
// regardless of this setting.
func WithBufferSize(n int) Option {
	return options.New(func(p *Parser) error {
		if n <= 0 {
			return fmt.Errorf("s2replay: buffer size must be positive, got %d", n)
		}

		p.scratch = pool.NewByteBuffer(n)

		return nil
	})
}

// Parser is the orchestrator (C11): it pulls commands from a demofile,
// builds the flattened-serializer graph, entity-class table, and
// string-table/instance-baseline state as it observes them, and drives
// the entity container through the tick-ordered stream, reporting every
// step to a Visitor.
type Parser struct {
	demoFile *demofile.DemoFile
	visitor  Visitor
	hltv     bool

	ctx      *Context
	fieldCtx *fields.DecodeContext
	scratch  *pool.ByteBuffer
}

// New builds a Parser reading from df. Options are applied in order.
func New(df *demofile.DemoFile, opts ...Option) (*Parser, error) {
	p := &Parser{
		demoFile: df,
		visitor:  NopVisitor{},
		ctx:      newContext(),
		fieldCtx: &fields.DecodeContext{},
	}

	if err := options.Apply(p, opts...); err != nil {
		return nil, err
	}

	if p.scratch == nil {
		p.scratch = pool.GetScratchBuffer()
	}

	return p, nil
}

// Context returns the orchestrator's live state.
func (p *Parser) Context() *Context {
	return p.ctx
}

func (p *Parser) readCmdHeader() (demofile.CmdHeader, error) {
	if p.hltv {
		return p.demoFile.ReadCmdHeaderHLTV()
	}

	return p.demoFile.ReadCmdHeader()
}

// RunToEnd drives the parser from its current position to the end of the
// stream (§4.11 "Run-to-end").
func (p *Parser) RunToEnd() error {
	for {
		eof, err := p.demoFile.IsEOF()
		if err != nil {
			return err
		}

		if eof {
			return nil
		}

		header, err := p.readCmdHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		stop, err := p.handleCmd(header, cmdOptions{decodeFullPacket: true})
		if err != nil {
			return err
		}

		if stop {
			return nil
		}
	}
}

// RunToTick resets the string-table, baseline-index and entity state and
// scans forward from the stream's current position (it does not seek back
// to the start of the stream) up to the first command whose tick exceeds
// target, using
// DemFullPacket checkpoints to skip decoding of anything further than one
// full-packet interval away (§4.11 "Run-to-tick").
func (p *Parser) RunToTick(target int32) error {
	if target < -1 {
		return errs.ErrNegativeTargetTick
	}

	p.ctx.reset()

	for {
		eof, err := p.demoFile.IsEOF()
		if err != nil {
			return err
		}

		if eof {
			return nil
		}

		header, err := p.readCmdHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		if header.Tick > target {
			if err := p.demoFile.UnreadCmdHeader(header); err != nil {
				return err
			}

			return nil
		}

		near := p.ctx.fullPacketIntv <= 0 || target-header.Tick <= p.ctx.fullPacketIntv

		if header.Cmd == protocol.DemFullPacket && !near {
			if err := p.demoFile.SkipCmdBody(header); err != nil {
				return err
			}

			continue
		}

		if !near && header.Cmd != protocol.DemFullPacket &&
			header.Cmd != protocol.DemSendTables && header.Cmd != protocol.DemClassInfo &&
			header.Cmd != protocol.DemStop {
			if err := p.demoFile.SkipCmdBody(header); err != nil {
				return err
			}

			continue
		}

		stop, err := p.handleCmd(header, cmdOptions{decodeFullPacket: near})
		if err != nil {
			return err
		}

		if stop {
			return nil
		}
	}
}

type cmdOptions struct {
	decodeFullPacket bool
}

// handleCmd decodes a command's body, reports it to the visitor, dispatches
// it by kind, and fires OnTickEnd whenever the tick advances. It returns
// true once DemStop has been observed.
func (p *Parser) handleCmd(header demofile.CmdHeader, opts cmdOptions) (bool, error) {
	body, err := p.demoFile.ReadCmdBody(header)
	if err != nil {
		return false, err
	}

	prevTick := p.ctx.tick
	p.ctx.tick = header.Tick

	if err := p.visitor.OnCmd(p.ctx, header, body); err != nil {
		return false, err
	}

	switch header.Cmd {
	case protocol.DemPacket, protocol.DemSignonPacket:
		pkt, err := protocol.DecodePacket(body)
		if err != nil {
			return false, err
		}

		if err := p.handleCmdPacket(pkt.Data); err != nil {
			return false, err
		}

	case protocol.DemSendTables:
		if _, ok := p.ctx.Serializers(); !ok {
			st, err := protocol.DecodeSendTables(body)
			if err != nil {
				return false, err
			}

			if len(st.Data) == 0 {
				return false, errs.ErrMissingSendTableBytes
			}

			msg, err := protocol.DecodeFlattenedSerializer(st.Data)
			if err != nil {
				return false, err
			}

			serializers, err := serializer.Parse(msg)
			if err != nil {
				return false, err
			}

			p.ctx.serializers = serializers
		}

	case protocol.DemClassInfo:
		if _, ok := p.ctx.Classes(); !ok {
			ci, err := protocol.DecodeClassInfo(body)
			if err != nil {
				return false, err
			}

			p.ctx.classes = entity.NewClassTable(ci)

			if _, ok := p.ctx.stringTables.Table(baseline.TableName); ok {
				p.ctx.baselineIdx.Rebuild(p.ctx.stringTables)
			}
		}

	case protocol.DemFullPacket:
		if opts.decodeFullPacket {
			fp, err := protocol.DecodeFullPacket(body)
			if err != nil {
				return false, err
			}

			p.ctx.stringTables.FullUpdate(fp.StringTable)

			if p.ctx.classes != nil {
				p.ctx.baselineIdx.Rebuild(p.ctx.stringTables)
			}

			if fp.HasPacket {
				if err := p.handleCmdPacket(fp.Packet.Data); err != nil {
					return false, err
				}
			}
		}

	case protocol.DemStop:
		if prevTick != p.ctx.tick {
			if err := p.visitor.OnTickEnd(p.ctx); err != nil {
				return false, err
			}
		}

		return true, nil
	}

	if prevTick != p.ctx.tick {
		if err := p.visitor.OnTickEnd(p.ctx); err != nil {
			return false, err
		}
	}

	return false, nil
}

// handleCmdPacket iterates a CDemoPacket/CDemoSignonPacket payload as a
// bit-framed sequence of (cmd: ubitvar, size: uvarint, body[size])
// sub-messages, reporting and dispatching each (§4.11 "sub-message
// routing").
func (p *Parser) handleCmdPacket(data []byte) error {
	r := bitread.New(data)

	for r.NumBitsLeft() > 8 {
		cmd := r.ReadUBitVar()
		size := r.ReadUvarint32()

		p.scratch.Reset()
		p.scratch.ExtendOrGrow(int(size))
		buf := p.scratch.Bytes()
		r.ReadBytes(buf)

		if err := p.visitor.OnPacket(p.ctx, cmd, buf); err != nil {
			return err
		}

		if err := p.dispatchSvcMessage(protocol.SvcMessage(cmd), buf); err != nil {
			return err
		}
	}

	return r.IsOverflowed()
}

func (p *Parser) dispatchSvcMessage(msg protocol.SvcMessage, body []byte) error {
	switch msg {
	case protocol.SvcCreateStringTable:
		return p.handleSvcCreateStringTable(body)
	case protocol.SvcUpdateStringTable:
		return p.handleSvcUpdateStringTable(body)
	case protocol.SvcPacketEntities:
		return p.handleSvcPacketEntities(body)
	case protocol.SvcServerInfo:
		return p.handleSvcServerInfo(body)
	default:
		return nil
	}
}

func (p *Parser) handleSvcCreateStringTable(body []byte) error {
	msg, err := protocol.DecodeCreateStringTable(body)
	if err != nil {
		return err
	}

	t, err := p.ctx.stringTables.Create(msg)
	if err != nil {
		return err
	}

	if t.Name == baseline.TableName && p.ctx.classes != nil {
		p.ctx.baselineIdx.Rebuild(p.ctx.stringTables)
	}

	return nil
}

func (p *Parser) handleSvcUpdateStringTable(body []byte) error {
	msg, err := protocol.DecodeUpdateStringTable(body)
	if err != nil {
		return err
	}

	t, err := p.ctx.stringTables.UpdateByID(msg)
	if err != nil {
		return err
	}

	if t.Name == baseline.TableName && p.ctx.classes != nil {
		p.ctx.baselineIdx.Rebuild(p.ctx.stringTables)
	}

	return nil
}

func (p *Parser) handleSvcServerInfo(body []byte) error {
	si, err := protocol.DecodeServerInfo(body)
	if err != nil {
		return err
	}

	p.ctx.tickInterval = si.TickInterval
	p.fieldCtx.TickInterval = si.TickInterval

	ratio := defaultTickInterval / si.TickInterval
	p.ctx.fullPacketIntv = int32(math.Round(defaultFullPacketInterval * float64(ratio)))

	return nil
}

// handleSvcPacketEntities decodes a svc_PacketEntities sub-message: for
// each updated entry it accumulates the entity index, reads the 2-bit
// delta header, dispatches to the entity container, and reports the
// result to the visitor for every delta kind, including Leave (§4.11
// "svc_PacketEntities").
func (p *Parser) handleSvcPacketEntities(body []byte) error {
	if _, ok := p.ctx.Serializers(); !ok {
		return errs.ErrSerializersNotReady
	}

	if _, ok := p.ctx.Classes(); !ok {
		return errs.ErrEntityClassesNotReady
	}

	pe, err := protocol.DecodePacketEntities(body)
	if err != nil {
		return err
	}

	r := bitread.New(pe.EntityData)
	index := int32(-1)

	for i := int32(0); i < pe.UpdatedEntries; i++ {
		index += int32(r.ReadUBitVar()) + 1

		delta := entity.ReadDeltaHeader(r)

		switch delta {
		case entity.DeltaCreate:
			e, err := p.ctx.entities.Create(index, r, p.fieldCtx, p.ctx.classes, p.ctx.serializers, p.ctx.baselineIdx)
			if err != nil {
				return err
			}

			if err := p.visitor.OnEntity(p.ctx, delta, e); err != nil {
				return err
			}

		case entity.DeltaUpdate:
			e, err := p.ctx.entities.Update(index, r, p.fieldCtx)
			if err != nil {
				return err
			}

			if err := p.visitor.OnEntity(p.ctx, delta, e); err != nil {
				return err
			}

		case entity.DeltaDelete:
			if err := p.ctx.entities.Delete(index); err != nil {
				return err
			}

			if err := p.visitor.OnEntity(p.ctx, delta, nil); err != nil {
				return err
			}

		case entity.DeltaLeave:
			e, _ := p.ctx.entities.Leave(index)

			if err := p.visitor.OnEntity(p.ctx, delta, e); err != nil {
				return err
			}
		}
	}

	return r.IsOverflowed()
}

// Close returns the parser's pooled scratch buffer. Safe to call once,
// after which the Parser must not be used again.
func (p *Parser) Close() {
	pool.PutScratchBuffer(p.scratch)
	p.scratch = nil
}
