package formulaengine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventKind is the discriminant for registry lifecycle and mutation events.
type EventKind string

const (
	EventSheetAdded   EventKind = "sheet-added"
	EventSheetRemoved EventKind = "sheet-removed"
	EventSheetRenamed EventKind = "sheet-renamed"
	EventCellChanged  EventKind = "cell-changed"
	EventCellsChanged EventKind = "cells-changed"
)

// Event is the payload delivered to subscribers. Only the fields relevant to
// Kind are populated; the rest are zero.
type Event struct {
	Kind         EventKind
	WorkbookName string
	SheetName    string
	OldSheetName string // EventSheetRenamed only
	Address      CellAddress
	Addresses    []CellAddress // EventCellsChanged only
	Value        CellValue
}

// Listener receives events of the kind it subscribed to.
type Listener func(Event)

// Unsubscribe detaches a previously registered listener. Calling it more
// than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id       uuid.UUID
	kind     EventKind
	listener Listener
}

// EventPublisher is a single-threaded fan-out publisher: subscribers attach
// a listener for one event kind and get back a detach handle, per §9's
// "registry events" design note. Listeners run to completion in
// subscription order before Publish returns, matching the engine's
// cooperative-synchronous execution model -- there is no queueing and no
// locking.
type EventPublisher struct {
	subs   []subscription
	logger zerolog.Logger
}

// NewEventPublisher constructs a publisher that logs each dispatch at debug
// level through logger.
func NewEventPublisher(logger zerolog.Logger) *EventPublisher {
	return &EventPublisher{logger: logger}
}

// Subscribe registers listener for events of kind and returns a handle that
// detaches it.
func (p *EventPublisher) Subscribe(kind EventKind, listener Listener) Unsubscribe {
	id := uuid.New()
	p.subs = append(p.subs, subscription{id: id, kind: kind, listener: listener})
	return func() {
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish dispatches event to every listener subscribed to its kind, in
// subscription order.
func (p *EventPublisher) Publish(event Event) {
	p.logger.Debug().Str("event", string(event.Kind)).Str("sheet", event.SheetName).Msg("dispatching event")
	for _, s := range p.subs {
		if s.kind == event.Kind {
			s.listener(event)
		}
	}
}

func (p *EventPublisher) PublishSheetAdded(workbookName, sheetName string) {
	p.Publish(Event{Kind: EventSheetAdded, WorkbookName: workbookName, SheetName: sheetName})
}

func (p *EventPublisher) PublishSheetRemoved(workbookName, sheetName string) {
	p.Publish(Event{Kind: EventSheetRemoved, WorkbookName: workbookName, SheetName: sheetName})
}

func (p *EventPublisher) PublishSheetRenamed(workbookName, oldName, newName string) {
	p.Publish(Event{Kind: EventSheetRenamed, WorkbookName: workbookName, SheetName: newName, OldSheetName: oldName})
}

func (p *EventPublisher) PublishCellChanged(addr CellAddress, value CellValue) {
	p.Publish(Event{Kind: EventCellChanged, Address: addr, Value: value})
}

func (p *EventPublisher) PublishCellsChanged(addrs []CellAddress) {
	p.Publish(Event{Kind: EventCellsChanged, Addresses: addrs})
}
