package formulaengine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher() *EventPublisher {
	return NewEventPublisher(zerolog.Nop())
}

func TestEventPublisherDeliversToMatchingKindOnly(t *testing.T) {
	pub := newTestPublisher()

	var sheetEvents, cellEvents int
	pub.Subscribe(EventSheetAdded, func(Event) { sheetEvents++ })
	pub.Subscribe(EventCellChanged, func(Event) { cellEvents++ })

	pub.PublishSheetAdded("Book1", "Sheet1")

	assert.Equal(t, 1, sheetEvents)
	assert.Equal(t, 0, cellEvents)
}

func TestEventPublisherDispatchesInSubscriptionOrder(t *testing.T) {
	pub := newTestPublisher()

	var order []int
	pub.Subscribe(EventSheetAdded, func(Event) { order = append(order, 1) })
	pub.Subscribe(EventSheetAdded, func(Event) { order = append(order, 2) })
	pub.Subscribe(EventSheetAdded, func(Event) { order = append(order, 3) })

	pub.PublishSheetAdded("Book1", "Sheet1")

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventPublisherUnsubscribeDetachesListener(t *testing.T) {
	pub := newTestPublisher()

	var calls int
	unsubscribe := pub.Subscribe(EventSheetAdded, func(Event) { calls++ })

	pub.PublishSheetAdded("Book1", "Sheet1")
	require.Equal(t, 1, calls)

	unsubscribe()
	pub.PublishSheetAdded("Book1", "Sheet1")
	assert.Equal(t, 1, calls, "listener should not fire after unsubscribe")
}

func TestEventPublisherUnsubscribeIsIdempotent(t *testing.T) {
	pub := newTestPublisher()
	unsubscribe := pub.Subscribe(EventSheetAdded, func(Event) {})
	assert.NotPanics(t, func() {
		unsubscribe()
		unsubscribe()
	})
}

func TestEventPublisherSheetRenamedCarriesOldAndNewNames(t *testing.T) {
	pub := newTestPublisher()

	var got Event
	pub.Subscribe(EventSheetRenamed, func(e Event) { got = e })

	pub.PublishSheetRenamed("Book1", "Sheet1", "Budget")

	assert.Equal(t, "Sheet1", got.OldSheetName)
	assert.Equal(t, "Budget", got.SheetName)
	assert.Equal(t, "Book1", got.WorkbookName)
}

func TestEventPublisherCellChangedCarriesAddressAndValue(t *testing.T) {
	pub := newTestPublisher()

	var got Event
	pub.Subscribe(EventCellChanged, func(e Event) { got = e })

	addr := CellAddress{WorksheetID: 1, Column: 0, Row: 0}
	pub.PublishCellChanged(addr, NumberValue(42))

	require.Equal(t, addr, got.Address)
	assert.Equal(t, CellValueNumber, got.Value.Type)
	assert.Equal(t, float64(42), got.Value.Number)
}

func TestEventPublisherCellsChangedCarriesAllAddresses(t *testing.T) {
	pub := newTestPublisher()

	var got Event
	pub.Subscribe(EventCellsChanged, func(e Event) { got = e })

	addrs := []CellAddress{
		{WorksheetID: 1, Column: 0, Row: 0},
		{WorksheetID: 1, Column: 1, Row: 0},
	}
	pub.PublishCellsChanged(addrs)

	assert.Equal(t, addrs, got.Addresses)
}

func TestEventPublisherWithNoSubscribersDoesNotPanic(t *testing.T) {
	pub := newTestPublisher()
	assert.NotPanics(t, func() {
		pub.PublishSheetAdded("Book1", "Sheet1")
	})
}
