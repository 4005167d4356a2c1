// Package atom provides the tagged value the engine exchanges in
// heterogeneous lists.
//
// An Atom is either a number (float64) or a symbol (text):
//
//	list := []atom.Atom{
//	    atom.Symbol("daisy"),
//	    atom.Float(33.5),
//	}
//
// Atoms are plain values. They hold no reference to engine memory, compare
// with == or Equal, and have no ordering.
//
// Lists can be built from Go values or parsed from message text:
//
//	list, err := atom.List("daisy", 33.5, 42)
//	parsed := atom.Parse("daisy 33.5 42 bang")
package atom
