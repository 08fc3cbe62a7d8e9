// Package ximtest provides a scripted, in-process protocol engine.
//
// The engine records every call the session makes and lets the test (or a
// loopback demo) decide when the server "responds": AckOpen and AckCreate
// replay the asynchronous open/create callbacks, Commit and Forward replay
// the server-to-client notifications. With AutoAck set, open and create are
// acknowledged synchronously from inside Open, which is how a same-process
// input-method server behaves.
package ximtest

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"ximclient/internal/xim"
)

// AttrCall records one SetContextAttributes call.
type AttrCall struct {
	IC    xim.ContextID
	Attrs []xim.Attr
}

// ForwardCall records one ForwardEvent call.
type ForwardCall struct {
	IC    xim.ContextID
	Event xgb.Event
}

// Engine is a scripted xim.Engine.
type Engine struct {
	// Knobs, set before use.
	OpenOK     bool         // result of Open; NewEngine defaults this to true
	AutoAck    bool         // acknowledge open and create synchronously
	FilterNext bool         // result of the next FilterEvent calls
	Enc        xim.Encoding // negotiated encoding reported by Encoding

	// ForwardHook, when set, runs on every ForwardEvent. A loopback server
	// commits or returns events from here.
	ForwardHook func(ic xim.ContextID, ev xgb.Event)

	// Recorded session registration.
	Token      any
	Callbacks  xim.Callbacks
	LogHandler func(string)
	UseCT      bool
	UseUTF8    bool
	Screen     int
	Name       string

	// Recorded traffic.
	Filtered   int
	Forwarded  []ForwardCall
	AttrCalls  []AttrCall
	FocusCalls []xim.ContextID
	CreateAttr []xim.Attr
	Closed     bool
	Destroyed  bool

	// Outstanding nested lists (created minus released).
	NestedLive int

	nextIC      xim.ContextID
	openCb      xim.OpenFunc
	openToken   any
	createCb    xim.CreateFunc
	createToken any
}

// NewEngine returns an engine that accepts open requests and speaks UTF-8.
func NewEngine() *Engine {
	return &Engine{OpenOK: true, Enc: xim.EncodingUTF8}
}

// Factory returns a xim.Factory yielding e, recording the screen and name
// the session asked for.
func (e *Engine) Factory() xim.Factory {
	return func(_ *xgb.Conn, screen int, name string) xim.Engine {
		e.Screen, e.Name = screen, name
		return e
	}
}

// Unavailable is a factory for which no input-method server exists.
func Unavailable(_ *xgb.Conn, _ int, _ string) xim.Engine { return nil }

func (e *Engine) SetCallbacks(cb xim.Callbacks, token any) {
	e.Callbacks = cb
	e.Token = token
}

func (e *Engine) SetLogHandler(fn func(string)) { e.LogHandler = fn }
func (e *Engine) SetUseCompoundText(use bool)   { e.UseCT = use }
func (e *Engine) SetUseUTF8String(use bool)     { e.UseUTF8 = use }

func (e *Engine) Open(cb xim.OpenFunc, _ bool, token any) bool {
	if !e.OpenOK {
		return false
	}
	e.openCb, e.openToken = cb, token
	if e.AutoAck {
		e.AckOpen()
	}
	return true
}

// AckOpen replays the server's open acknowledgement.
func (e *Engine) AckOpen() {
	if e.openCb != nil {
		e.openCb(e, e.openToken)
	}
}

func (e *Engine) CreateContext(cb xim.CreateFunc, token any, attrs []xim.Attr) {
	e.createCb, e.createToken = cb, token
	e.CreateAttr = append([]xim.Attr(nil), attrs...)
	if e.AutoAck {
		e.AckCreate()
	}
}

// AckCreate replays the server's create acknowledgement with a fresh
// context handle.
func (e *Engine) AckCreate() {
	if e.createCb == nil {
		return
	}
	e.nextIC++
	e.createCb(e, e.nextIC, e.createToken)
}

func (e *Engine) FilterEvent(ev xgb.Event) bool {
	if e.FilterNext {
		e.Filtered++
		return true
	}
	return false
}

func (e *Engine) ForwardEvent(ic xim.ContextID, ev xgb.Event) {
	e.Forwarded = append(e.Forwarded, ForwardCall{IC: ic, Event: ev})
	if e.ForwardHook != nil {
		e.ForwardHook(ic, ev)
	}
}

func (e *Engine) SetContextAttributes(ic xim.ContextID, attrs []xim.Attr) {
	e.AttrCalls = append(e.AttrCalls, AttrCall{IC: ic, Attrs: append([]xim.Attr(nil), attrs...)})
}

func (e *Engine) SetContextFocus(ic xim.ContextID) {
	e.FocusCalls = append(e.FocusCalls, ic)
}

func (e *Engine) NewNestedList(attrs ...xim.Attr) xim.NestedList {
	e.NestedLive++
	return &nestedList{e: e, attrs: attrs}
}

func (e *Engine) Encoding() xim.Encoding { return e.Enc }

func (e *Engine) Close()   { e.Closed = true }
func (e *Engine) Destroy() { e.Destroyed = true }

// Commit replays a commit-string notification from the server.
func (e *Engine) Commit(ic xim.ContextID, flag uint32, text []byte, keysyms []uint32) {
	if e.Callbacks.CommitString != nil {
		e.Callbacks.CommitString(ic, flag, text, keysyms, e.Token)
	}
}

// Forward replays a forward-event notification from the server.
func (e *Engine) Forward(ic xim.ContextID, ev xproto.KeyPressEvent) {
	if e.Callbacks.ForwardEvent != nil {
		e.Callbacks.ForwardEvent(ic, ev, e.Token)
	}
}

// Log replays an engine diagnostic.
func (e *Engine) Log(msg string) {
	if e.LogHandler != nil {
		e.LogHandler(msg)
	}
}

type nestedList struct {
	e        *Engine
	attrs    []xim.Attr
	released bool
}

func (n *nestedList) Release() {
	if n.released {
		return
	}
	n.released = true
	n.e.NestedLive--
}
