package xim_test

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"ximclient/internal/xim"
	"ximclient/internal/xim/ximtest"
)

func keyPress(win xproto.Window) xproto.KeyPressEvent {
	return xproto.KeyPressEvent{Detail: 38, Event: win}
}

func keyRelease(win xproto.Window) xproto.KeyReleaseEvent {
	return xproto.KeyReleaseEvent{Detail: 38, Event: win}
}

func newSession(t *testing.T, engine *ximtest.Engine) *xim.Session {
	t.Helper()
	s, err := xim.Create(nil, 0, engine.Factory(), xim.Options{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return s
}

func TestCreateUnavailable(t *testing.T) {
	s, err := xim.Create(nil, 0, ximtest.Unavailable, xim.Options{})
	if err != xim.ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if s != nil {
		t.Error("expected nil session on failed create")
	}
}

func TestCreateRegistersWithEngine(t *testing.T) {
	engine := ximtest.NewEngine()
	s, err := xim.Create(nil, 2, engine.Factory(), xim.Options{Name: "fcitx"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if engine.Screen != 2 || engine.Name != "fcitx" {
		t.Errorf("factory got screen=%d name=%q", engine.Screen, engine.Name)
	}
	if engine.Token != s {
		t.Error("session was not registered as the callback token")
	}
	if engine.Callbacks.CommitString == nil || engine.Callbacks.ForwardEvent == nil {
		t.Error("session callbacks not installed")
	}
	if engine.LogHandler == nil {
		t.Error("log handler not installed")
	}
	if !engine.UseCT || !engine.UseUTF8 {
		t.Error("encoding preferences not declared")
	}
}

func TestProcessEventFiltered(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	engine.FilterNext = true
	if !s.ProcessEvent(keyPress(100)) {
		t.Error("filtered event should be reported consumed")
	}
	if len(engine.Forwarded) != 0 {
		t.Error("filtered event must not be forwarded")
	}
}

func TestProcessEventIgnoresNonKeyEvents(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	if s.ProcessEvent(xproto.ExposeEvent{Window: 100}) {
		t.Error("non-key event should not be consumed")
	}
	if len(engine.Forwarded) != 0 {
		t.Error("non-key event must not be forwarded")
	}
}

// The first key event starts the open handshake; until the server responds,
// every event is left to the caller.
func TestProcessEventWhileOpening(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	for i := 0; i < 5; i++ {
		if s.ProcessEvent(keyPress(100)) {
			t.Fatalf("event %d consumed before context was created", i)
		}
	}
	if len(engine.Forwarded) != 0 {
		t.Error("nothing should be forwarded while opening")
	}
}

// Full lifecycle: key event triggers open, server acks open and create,
// the next key event is forwarded.
func TestLifecycle(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	if s.ProcessEvent(keyPress(100)) {
		t.Fatal("first key event should not be consumed")
	}

	engine.AckOpen()
	if len(engine.CreateAttr) == 0 {
		t.Fatal("open ack should trigger a create-IC request")
	}
	assertAttr(t, engine.CreateAttr, xim.AttrInputStyle, xim.StylePreeditPosition|xim.StyleStatusArea)
	assertAttr(t, engine.CreateAttr, xim.AttrClientWindow, xproto.Window(100))
	assertAttr(t, engine.CreateAttr, xim.AttrFocusWindow, xproto.Window(100))
	if engine.NestedLive != 0 {
		t.Errorf("%d nested lists leaked by create path", engine.NestedLive)
	}

	engine.AckCreate()
	if len(engine.FocusCalls) != 1 {
		t.Fatalf("expected one focus call after create, got %d", len(engine.FocusCalls))
	}

	if !s.ProcessEvent(keyPress(100)) {
		t.Fatal("key event should be consumed once the context is created")
	}
	if len(engine.Forwarded) != 1 {
		t.Fatalf("expected one forwarded event, got %d", len(engine.Forwarded))
	}
	if engine.Forwarded[0].IC != engine.FocusCalls[0] {
		t.Error("event forwarded under the wrong context handle")
	}

	if !s.ProcessEvent(keyRelease(100)) {
		t.Error("key release should be consumed too")
	}
}

// A synchronous open failure resets to no-context; the next key event
// starts a fresh attempt.
func TestOpenFailureRetryByRecurrence(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.OpenOK = false
	s := newSession(t, engine)

	if s.ProcessEvent(keyPress(100)) {
		t.Fatal("event should not be consumed when open fails")
	}

	engine.OpenOK = true
	engine.AutoAck = true
	if s.ProcessEvent(keyPress(100)) {
		t.Fatal("retry event itself should not be consumed")
	}
	if !s.ProcessEvent(keyPress(100)) {
		t.Fatal("context should exist after the retried handshake")
	}
}

// Retargeting rewrites the stored window exactly once and is idempotent.
func TestRetarget(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	s := newSession(t, engine)

	s.ProcessEvent(keyPress(100)) // opens and creates via AutoAck
	base := len(engine.AttrCalls)

	if !s.ProcessEvent(keyPress(200)) {
		t.Fatal("key event for new window should be consumed")
	}
	if got := len(engine.AttrCalls) - base; got != 1 {
		t.Fatalf("expected one retarget attribute push, got %d", got)
	}
	assertAttr(t, engine.AttrCalls[base].Attrs, xim.AttrClientWindow, xproto.Window(200))
	assertAttr(t, engine.AttrCalls[base].Attrs, xim.AttrFocusWindow, xproto.Window(200))

	// Same window again: no further attribute traffic.
	s.ProcessEvent(keyPress(200))
	if got := len(engine.AttrCalls) - base; got != 1 {
		t.Errorf("retarget to the same window should be a no-op, got %d pushes", got)
	}
}

// Retargeting is skipped while the handle is still zero.
func TestRetargetWhileOpening(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	s.ProcessEvent(keyPress(100))
	s.ProcessEvent(keyPress(200))
	if len(engine.AttrCalls) != 0 {
		t.Error("no attributes should be pushed before the context exists")
	}

	// The provisional record still tracks the original window.
	engine.AckOpen()
	assertAttr(t, engine.CreateAttr, xim.AttrClientWindow, xproto.Window(100))
}

func TestUpdatePos(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	if s.UpdatePos(100, 10, 20) {
		t.Error("UpdatePos should report false with no context")
	}
	if len(engine.AttrCalls) != 0 {
		t.Error("no engine call expected with no context")
	}

	engine.AutoAck = true
	s.ProcessEvent(keyPress(100))

	if !s.UpdatePos(100, 10, 20) {
		t.Fatal("UpdatePos should report true once created")
	}
	last := engine.AttrCalls[len(engine.AttrCalls)-1]
	nested := findAttr(t, last.Attrs, xim.AttrPreeditAttributes)
	if nested == nil {
		t.Fatal("spot update should carry preedit attributes")
	}
	if engine.NestedLive != 0 {
		t.Errorf("%d nested lists leaked by spot update", engine.NestedLive)
	}

	// Spot update for a new window retargets first.
	before := len(engine.AttrCalls)
	if !s.UpdatePos(300, 1, 2) {
		t.Fatal("UpdatePos for new window should succeed")
	}
	if got := len(engine.AttrCalls) - before; got != 2 {
		t.Errorf("expected retarget push plus spot push, got %d calls", got)
	}
}

func TestCommitStringUTF8(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	s := newSession(t, engine)
	s.ProcessEvent(keyPress(100))

	var gotWin xproto.Window
	var gotText string
	s.SetCommitStringHandler(xim.CommitFunc(func(win xproto.Window, text string) {
		gotWin, gotText = win, text
	}))

	for _, text := range []string{"hello", "こんにちは"} {
		engine.Commit(1, 0, append([]byte(text), 0), nil)
		if gotText != text {
			t.Errorf("commit round-trip: got %q, want %q", gotText, text)
		}
		if gotWin != 100 {
			t.Errorf("commit window: got %d, want 100", gotWin)
		}
	}
}

func TestCommitStringCompoundText(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	engine.Enc = xim.EncodingCompoundText
	s := newSession(t, engine)
	s.ProcessEvent(keyPress(100))

	var gotText string
	s.SetCommitStringHandler(xim.CommitFunc(func(_ xproto.Window, text string) {
		gotText = text
	}))

	// Latin-1 right half through the default codec.
	engine.Commit(1, 0, []byte("caf\xe9"), nil)
	if gotText != "café" {
		t.Errorf("compound text commit: got %q, want %q", gotText, "café")
	}

	// Undecodable input degrades to an empty string, not an error.
	gotText = "sentinel"
	engine.Commit(1, 0, []byte{0x1b, 'z'}, nil)
	if gotText != "" {
		t.Errorf("codec failure should deliver empty string, got %q", gotText)
	}
}

func TestCallbacksDroppedWhenUnset(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	s := newSession(t, engine)
	s.ProcessEvent(keyPress(100))

	// No handlers registered: notifications must be silently dropped.
	engine.Commit(1, 0, []byte("ignored\x00"), nil)
	engine.Forward(1, keyPress(100))

	if !s.ProcessEvent(keyPress(100)) {
		t.Error("session should keep forwarding regardless of handlers")
	}
}

func TestForwardEventDelivery(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	s := newSession(t, engine)
	s.ProcessEvent(keyPress(100))

	var got []xproto.KeyPressEvent
	s.SetForwardEventHandler(xim.ForwardFunc(func(ev xproto.KeyPressEvent) {
		got = append(got, ev)
	}))

	ev := keyPress(100)
	ev.Detail = 54
	engine.Forward(1, ev)
	if len(got) != 1 || got[0].Detail != 54 {
		t.Fatalf("forward handler got %+v", got)
	}
}

// Replacing a handler overwrites the previous one, no chaining.
func TestHandlerReplacement(t *testing.T) {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	s := newSession(t, engine)
	s.ProcessEvent(keyPress(100))

	var first, second int
	s.SetCommitStringHandler(xim.CommitFunc(func(xproto.Window, string) { first++ }))
	s.SetCommitStringHandler(xim.CommitFunc(func(xproto.Window, string) { second++ }))

	engine.Commit(1, 0, []byte("x\x00"), nil)
	if first != 0 || second != 1 {
		t.Errorf("handler replacement: first=%d second=%d", first, second)
	}
}

func TestClose(t *testing.T) {
	engine := ximtest.NewEngine()
	s := newSession(t, engine)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !engine.Closed || !engine.Destroyed {
		t.Error("Close should close and destroy the engine handle")
	}

	engine.Closed, engine.Destroyed = false, false
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if engine.Closed || engine.Destroyed {
		t.Error("second Close must not touch the engine again")
	}
}

func assertAttr(t *testing.T, attrs []xim.Attr, name xim.AttrName, want any) {
	t.Helper()
	got := findAttr(t, attrs, name)
	if got == nil {
		t.Errorf("attribute %s missing", name)
		return
	}
	if got.Value != want {
		t.Errorf("attribute %s: got %v, want %v", name, got.Value, want)
	}
}

func findAttr(t *testing.T, attrs []xim.Attr, name xim.AttrName) *xim.Attr {
	t.Helper()
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}
