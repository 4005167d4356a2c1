// Package pd is a safety layer over the engine package.
//
// The engine keeps one current instance per OS thread, one hook slot per
// event category for the whole process, and an outgoing message buffer
// that trusts its caller on capacity. Pd hides all three:
//
//   - every operation makes its instance current for the call and restores
//     the previous selection afterwards, nested or not;
//   - callbacks are owned by a registry that clears the hook slots it still
//     owns and destroys every closure exactly once on Close;
//   - the message builder refuses elements past the declared capacity and
//     never forwards them to the engine.
//
// # Quick Start
//
//	eng := engine.NewSim()
//	p, err := pd.InitAndConfigure(eng, 0, 2, 44100, pd.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	_ = p.OpenPatch("echo.pd")
//	_ = p.Subscribe("list_from_pd")
//	_ = p.OnList(func(source string, list []atom.Atom) {
//	    fmt.Println(source, atom.Format(list))
//	})
//	_ = p.DSPOn()
//
//	ctx := p.AudioContext()
//	go func() {
//	    for range ticker.C {
//	        _ = ctx.ProcessFloat(ticks, in, out)
//	        ctx.ReceiveMessages()
//	    }
//	}()
//
//	_ = p.SendList("list_from_go", atom.MustList("daisy", 33.5))
//
// # Building Messages
//
//	p.StartMessage(3)
//	p.AddSymbol("freq")
//	p.AddDouble(440)
//	p.AddFloat(0.5)
//	p.FinishAsList("synth")
//
// An element past capacity fails with KindOutOfRange and spoils the
// message; finishing it fails too and discards it. FinishAsTyped accepts at
// most four elements; past that it fails and leaves the message open.
//
// # Hook Slots
//
// Hook slots belong to the process, not to a Pd. Registering a category
// from a second Pd takes the slot over; the first Pd's Close then leaves
// it alone. Callbacks run on the goroutine calling ReceiveMessages or
// ReceiveMIDIMessages and must not block.
//
// Text from the engine that is not valid UTF-8 is a broken contract and
// panics with a KindInvalidUTF8 error.
package pd
