package parser

import (
	"github.com/arloliu/s2replay/demofile"
	"github.com/arloliu/s2replay/entity"
)

// Visitor receives parse events in stream order (§4.11 "Visitor hooks").
// Any method returning a non-nil error aborts parsing immediately; no
// further commands are processed and no partial state is exposed.
type Visitor interface {
	// OnCmd fires once per top-level command, before it is dispatched.
	OnCmd(ctx *Context, header demofile.CmdHeader, body []byte) error
	// OnPacket fires once per sub-message inside a DemPacket/DemSignonPacket/
	// DemFullPacket payload.
	OnPacket(ctx *Context, packetType uint32, body []byte) error
	// OnEntity fires once per updated-entry in a svc_PacketEntities message.
	OnEntity(ctx *Context, delta entity.DeltaHeader, e *entity.Entity) error
	// OnTickEnd fires whenever the current command's tick differs from the
	// previous command's tick.
	OnTickEnd(ctx *Context) error
}

// NopVisitor implements Visitor with no-op methods. Embed it in a visitor
// that only cares about a subset of events.
type NopVisitor struct{}

func (NopVisitor) OnCmd(*Context, demofile.CmdHeader, []byte) error           { return nil }
func (NopVisitor) OnPacket(*Context, uint32, []byte) error                   { return nil }
func (NopVisitor) OnEntity(*Context, entity.DeltaHeader, *entity.Entity) error { return nil }
func (NopVisitor) OnTickEnd(*Context) error                                   { return nil }

var _ Visitor = NopVisitor{}
