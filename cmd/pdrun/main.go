// Command pdrun opens a Pure Data patch and drives it: printing what the
// patch sends to subscribed receivers, sending messages into it, watching
// events in a terminal UI, or exporting bridge metrics.
package main

func main() {
	Execute()
}
