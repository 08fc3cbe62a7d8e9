package xim

import "github.com/BurntSushi/xgb/xproto"

// CommitHandler receives text the input-method server committed for a
// window.
type CommitHandler interface {
	OnCommit(win xproto.Window, text string)
}

// CommitFunc adapts a function to CommitHandler.
type CommitFunc func(win xproto.Window, text string)

func (f CommitFunc) OnCommit(win xproto.Window, text string) { f(win, text) }

// ForwardHandler receives key events the server examined but chose not to
// consume. The event is delivered verbatim; its lifecycle belongs to the
// windowing layer.
type ForwardHandler interface {
	OnForward(ev xproto.KeyPressEvent)
}

// ForwardFunc adapts a function to ForwardHandler.
type ForwardFunc func(ev xproto.KeyPressEvent)

func (f ForwardFunc) OnForward(ev xproto.KeyPressEvent) { f(ev) }

// callbackRegistry holds at most one handler per slot. Replacing a handler
// overwrites the previous one; while a slot is empty, inbound notifications
// for it are dropped.
type callbackRegistry struct {
	commitString CommitHandler
	forwardEvent ForwardHandler
}
