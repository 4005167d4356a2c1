// Package resource provides an owning handle table with remembered
// destructors.
//
// Values stored in a table are type-erased. Each entry remembers its kind
// and a label, and values that implement Dropper have Drop called exactly
// once when the entry leaves the table.
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	h := table.Insert(resource.KindClosure, "bang", value)
//	value, ok := table.Get(h)
//	value, ok = table.Remove(h) // runs Drop
//
// # Pins
//
// An entry that is referenced from outside Go, for example an adapter
// installed in a native hook slot, is pinned. Remove refuses pinned entries;
// the owner unpins once the outside reference is gone.
//
//	table.Pin(h)
//	// ... native slot cleared ...
//	table.Unpin(h)
//
// Close drops every entry, pinned or not, and reports leftover pins as
// ErrPinned so the owner can log the ordering mistake.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(observer) // OnResourceEvent(resource.Event)
//
// Observers run synchronously on the goroutine that changed the table.
package resource
