package xim

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// ContextID identifies a server-side input context. Zero means the server
// has not created the context yet.
type ContextID uint32

// Encoding is the text encoding the engine negotiated with the input-method
// server for committed strings.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingCompoundText
	EncodingOther
)

// Input style bits requested at context creation. They mirror the XIM
// XIMStyle resource values.
const (
	StylePreeditPosition uint32 = 0x0004
	StyleStatusArea      uint32 = 0x0100
)

// AttrName names an input-context attribute, mirroring the XIM XN* resource
// names.
type AttrName string

const (
	AttrInputStyle        AttrName = "inputStyle"
	AttrClientWindow      AttrName = "clientWindow"
	AttrFocusWindow       AttrName = "focusWindow"
	AttrPreeditAttributes AttrName = "preeditAttributes"
	AttrSpotLocation      AttrName = "spotLocation"
)

// Attr is a single entry in an attribute list passed to the engine.
type Attr struct {
	Name  AttrName
	Value any
}

// NestedList is an engine-allocated nested attribute list. The caller must
// Release it once the attribute-set call it was built for has returned,
// on every exit path. Release is idempotent.
type NestedList interface {
	Release()
}

// OpenFunc is invoked by the engine once the server acknowledges an open
// request. token is the value passed to Open.
type OpenFunc func(e Engine, token any)

// CreateFunc is invoked by the engine once the server has created an input
// context. token is the value passed to CreateContext.
type CreateFunc func(e Engine, ic ContextID, token any)

// Callbacks are the session-level handlers registered once with the engine.
// The engine calls them with the token passed to SetCallbacks; the token is
// a non-owning back-reference used to look up session state.
type Callbacks struct {
	// CommitString delivers text composed by the server. flag and keysyms
	// carry the protocol-level commit details; text is encoded per the
	// engine's negotiated encoding.
	CommitString func(ic ContextID, flag uint32, text []byte, keysyms []uint32, token any)

	// ForwardEvent returns a key event the server declined to consume.
	ForwardEvent func(ic ContextID, ev xproto.KeyPressEvent, token any)
}

// Engine is the XIM protocol collaborator. It owns server discovery, the
// wire handshake, and attribute encoding; this package only drives it.
//
// Open and CreateContext are asynchronous: the engine invokes the supplied
// callback when the server responds, from within FilterEvent or from the
// transport's event pump. Close guarantees that no callback fires after it
// returns.
type Engine interface {
	SetCallbacks(cb Callbacks, token any)
	SetLogHandler(fn func(msg string))
	SetUseCompoundText(use bool)
	SetUseUTF8String(use bool)

	// Open requests a connection to the input-method server. It reports
	// false when the request could not be issued at all, in which case cb
	// will never run.
	Open(cb OpenFunc, syncRequest bool, token any) bool

	// CreateContext asks the server to create an input context with the
	// given attributes.
	CreateContext(cb CreateFunc, token any, attrs []Attr)

	// FilterEvent reports whether the engine consumed the event at the
	// protocol level.
	FilterEvent(ev xgb.Event) bool

	// ForwardEvent hands a key event to the server for composition.
	ForwardEvent(ic ContextID, ev xgb.Event)

	SetContextAttributes(ic ContextID, attrs []Attr)
	SetContextFocus(ic ContextID)

	// NewNestedList builds an engine-owned nested attribute list. The
	// caller must Release it after use.
	NewNestedList(attrs ...Attr) NestedList

	Encoding() Encoding

	Close()
	Destroy()
}

// Factory creates an engine bound to an X connection and screen. name
// selects the input-method server (XMODIFIERS syntax); empty means the
// server default. A nil return means the input method is unavailable and
// the caller should fall back to direct key handling.
type Factory func(conn *xgb.Conn, screen int, name string) Engine

// Codec converts compound text to UTF-8. A failed conversion is not fatal:
// the session substitutes an empty string.
type Codec interface {
	// Init prepares any codec state. Called once per session creation.
	Init()

	CompoundTextToUTF8(data []byte) ([]byte, error)
}
