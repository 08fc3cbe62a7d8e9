package xim

import (
	"errors"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"ximclient/internal/ctext"
)

// ErrUnavailable is returned by Create when no input-method server can be
// reached. Callers should degrade to direct key handling.
var ErrUnavailable = errors.New("xim: input method unavailable")

// icRecord tracks the session's single input context. ic stays zero until
// the create callback stores the server-assigned handle; win may be
// retargeted any number of times while ic stays fixed.
type icRecord struct {
	win xproto.Window
	ic  ContextID
}

// Options configure session creation.
type Options struct {
	// Name selects the input-method server (XMODIFIERS syntax). Empty uses
	// the server default.
	Name string

	// Codec converts committed compound text to UTF-8. Nil selects the
	// ctext default.
	Codec Codec
}

// Session is a client-side XIM session: one protocol-engine handle, at most
// one input context, and the application callback registry.
//
// The Session pointer is registered with the engine as the opaque callback
// token at creation and the engine may hold it for asynchronous callback at
// any later point, so a Session must never be copied. Callers must also
// serialize calls into a Session; it does no internal locking.
type Session struct {
	conn      *xgb.Conn // retained so the engine's transport outlives the caller's reference
	engine    Engine
	codec     Codec
	ic        *icRecord
	callbacks callbackRegistry
	closed    bool
}

// Create builds a session on the given X connection and screen. newEngine
// supplies the protocol engine; a nil engine aborts creation with
// ErrUnavailable.
func Create(conn *xgb.Conn, screen int, newEngine Factory, opts Options) (*Session, error) {
	codec := opts.Codec
	if codec == nil {
		codec = ctext.New()
	}
	codec.Init()

	engine := newEngine(conn, screen, opts.Name)
	if engine == nil {
		return nil, ErrUnavailable
	}

	s := &Session{
		conn:   conn,
		engine: engine,
		codec:  codec,
	}
	engine.SetCallbacks(Callbacks{
		CommitString: commitStringCallback,
		ForwardEvent: forwardEventCallback,
	}, s)
	engine.SetLogHandler(emitLog)
	engine.SetUseCompoundText(true)
	engine.SetUseUTF8String(true)
	return s, nil
}

// ProcessEvent routes a raw X event through the input method. It reports
// true when the event was consumed and the caller must not process it
// further; any resulting text arrives later via the commit or forward
// callbacks.
func (s *Session) ProcessEvent(ev xgb.Event) bool {
	if s.engine.FilterEvent(ev) {
		return true
	}

	var win xproto.Window
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		win = e.Event
	case xproto.KeyReleaseEvent:
		win = e.Event
	default:
		return false
	}

	s.setICWindow(win)
	if rec := s.ic; rec != nil {
		if rec.ic == 0 {
			// Context still opening; let the caller handle the key.
			return false
		}
		s.engine.ForwardEvent(rec.ic, ev)
		return true
	}

	// First key event for this session: start the open handshake.
	// Forwarding begins with the next event, once the context exists.
	s.tryOpenIC(win)
	return false
}

// UpdatePos pushes a new preedit spot location for win so the server can
// place composition UI near the caret. It reports false while no created
// context exists yet.
func (s *Session) UpdatePos(win xproto.Window, x, y int16) bool {
	s.setICWindow(win)
	rec := s.ic
	if rec == nil || rec.ic == 0 {
		return false
	}
	nested := s.engine.NewNestedList(Attr{Name: AttrSpotLocation, Value: xproto.Point{X: x, Y: y}})
	defer nested.Release()
	s.engine.SetContextAttributes(rec.ic, []Attr{
		{Name: AttrPreeditAttributes, Value: nested},
	})
	return true
}

// SetCommitStringHandler replaces the commit-string handler. Effective for
// all subsequent notifications.
func (s *Session) SetCommitStringHandler(h CommitHandler) {
	s.callbacks.commitString = h
}

// SetForwardEventHandler replaces the forward-event handler. Effective for
// all subsequent notifications.
func (s *Session) SetForwardEventHandler(h ForwardHandler) {
	s.callbacks.forwardEvent = h
}

// Close shuts down the input context and releases the engine handle. The
// engine contract guarantees no callback fires after Close returns. Safe to
// call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.engine.Close()
	s.engine.Destroy()
	return nil
}

// tryOpenIC begins the open handshake for win. A provisional record with a
// zero handle is stored first so the record's address can serve as the
// callback token; a synchronous open failure discards it again.
func (s *Session) tryOpenIC(win xproto.Window) {
	if s.ic != nil {
		return
	}
	rec := &icRecord{win: win}
	s.ic = rec
	if !s.engine.Open(openCallback, true, rec) {
		s.ic = nil
	}
}

// setICWindow retargets the context to win. No-op when no record exists,
// the window is unchanged, or the context has not been created yet.
func (s *Session) setICWindow(win xproto.Window) {
	rec := s.ic
	if rec == nil || rec.win == win || rec.ic == 0 {
		return
	}
	rec.win = win
	s.engine.SetContextAttributes(rec.ic, []Attr{
		{Name: AttrClientWindow, Value: rec.win},
		{Name: AttrFocusWindow, Value: rec.win},
	})
}

// openCallback runs once the server acknowledges the open request. It
// issues the create-IC request with the fixed attribute set: preedit at
// position plus status area, spot at the origin, client and focus window
// both the tracked window.
func openCallback(e Engine, token any) {
	rec := token.(*icRecord)
	nested := e.NewNestedList(Attr{Name: AttrSpotLocation, Value: xproto.Point{X: 0, Y: 0}})
	defer nested.Release()
	e.CreateContext(createICCallback, token, []Attr{
		{Name: AttrInputStyle, Value: StylePreeditPosition | StyleStatusArea},
		{Name: AttrClientWindow, Value: rec.win},
		{Name: AttrFocusWindow, Value: rec.win},
		{Name: AttrPreeditAttributes, Value: nested},
	})
}

// createICCallback stores the server-assigned handle and moves input focus
// to the new context. Only this callback ever mutates rec.ic.
func createICCallback(e Engine, ic ContextID, token any) {
	rec := token.(*icRecord)
	rec.ic = ic
	e.SetContextFocus(ic)
}

// commitStringCallback decodes server-committed text and hands it to the
// registered commit handler together with the tracked window. A codec
// failure yields an empty string rather than an error.
func commitStringCallback(_ ContextID, _ uint32, input []byte, _ []uint32, token any) {
	s := token.(*Session)

	var text string
	switch s.engine.Encoding() {
	case EncodingUTF8:
		text = string(trimNUL(input))
	case EncodingCompoundText:
		if utf8, err := s.codec.CompoundTextToUTF8(input); err == nil {
			text = string(trimNUL(utf8))
		}
	}

	if s.ic == nil || s.callbacks.commitString == nil {
		return
	}
	s.callbacks.commitString.OnCommit(s.ic.win, text)
}

// forwardEventCallback delivers a server-returned key event verbatim to the
// registered forward handler, or drops it when none is installed.
func forwardEventCallback(_ ContextID, ev xproto.KeyPressEvent, token any) {
	s := token.(*Session)
	if s.callbacks.forwardEvent == nil {
		return
	}
	s.callbacks.forwardEvent.OnForward(ev)
}

// trimNUL strips the protocol's terminating NUL, if present.
func trimNUL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == 0 {
		return b[:n-1]
	}
	return b
}
