package main

import (
	"fmt"
	"io"
	"sync"

	"chem-assistant/internal/client"
)

// terminalView prints client updates. The answer is printed as the formatted
// HTML fragment.
type terminalView struct {
	mu        sync.Mutex
	out       io.Writer
	followUps bool
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) SetState(s client.State) {
	if s == client.Loading {
		v.println("… উত্তর তৈরি হচ্ছে")
	}
}

func (v *terminalView) ShowError(message string) {
	v.println("⚠ " + message)
}

func (v *terminalView) ShowAnswer(html string) {
	v.println(html)
}

func (v *terminalView) EnableFollowUps(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.followUps = enabled
}

// ClearInput is a no-op: the terminal line is consumed once read.
func (v *terminalView) ClearInput() {}

func (v *terminalView) prompt(image *client.Attachment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case image != nil:
		fmt.Fprintf(v.out, "[%s] > ", image.Filename)
	case v.followUps:
		fmt.Fprint(v.out, "(/regenerate /simplify) > ")
	default:
		fmt.Fprint(v.out, "> ")
	}
}

func (v *terminalView) println(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, s)
}
