package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/editor"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	nav := NewNavigation()
	assets := editor.PrimitiveAssets{"crate": {Kind: editor.BoxPrimitive, Dims: r3.Vector{X: 1, Y: 1, Z: 1}}}
	ed := editor.New(persistence.NewMemoryStore(), assets, nav, editor.Options{Tolerance: collision.DefaultTolerance}, logger)
	for id, x := range map[string]float64{"a": 0, "b": 1.5} {
		_, err := ed.Place(context.Background(), editor.Placement{
			ID:        id,
			Asset:     "crate",
			Transform: referenceframe.NewTransformFromPoint(r3.Vector{X: x}),
		})
		test.That(t, err, test.ShouldBeNil)
	}

	s := NewServer(ed, nav, Options{BroadcastInterval: 10 * time.Millisecond}, logger)
	httpServer := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		httpServer.Close()
		test.That(t, s.Close(), test.ShouldBeNil)
		test.That(t, ed.Close(context.Background()), test.ShouldBeNil)
	})
	return s, httpServer
}

func dial(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)), test.ShouldBeNil)
	return conn
}

// call sends req and returns its reply, skipping scene broadcasts.
func call(t *testing.T, conn *websocket.Conn, req Request) Response {
	t.Helper()
	test.That(t, conn.WriteJSON(req), test.ShouldBeNil)
	for {
		var resp Response
		test.That(t, conn.ReadJSON(&resp), test.ShouldBeNil)
		if resp.Type != MessageScene {
			return resp
		}
	}
}

func objectState(t *testing.T, state *State, id string) ObjectState {
	t.Helper()
	test.That(t, state, test.ShouldNotBeNil)
	for _, obj := range state.Objects {
		if obj.ID == id {
			return obj
		}
	}
	t.Fatalf("no object %q in state", id)
	return ObjectState{}
}

func TestGestures(t *testing.T) {
	_, httpServer := newTestServer(t)
	conn := dial(t, httpServer)
	defer conn.Close()

	resp := call(t, conn, Request{Type: MessageState})
	test.That(t, resp.State.Objects, test.ShouldHaveLength, 2)
	test.That(t, resp.State.NavigationEnabled, test.ShouldBeTrue)
	test.That(t, objectState(t, resp.State, "a").Bounds, test.ShouldNotBeNil)

	resp = call(t, conn, Request{Type: MessageDragStart, ID: "a"})
	test.That(t, resp.Type, test.ShouldEqual, MessageDragStart)
	resp = call(t, conn, Request{Type: MessageState})
	test.That(t, resp.State.NavigationEnabled, test.ShouldBeFalse)
	test.That(t, objectState(t, resp.State, "a").IsDragging, test.ShouldBeTrue)

	resp = call(t, conn, Request{Type: MessageDragUpdate, ID: "a", Translation: &[3]float64{0.6, 0, 0.6}})
	test.That(t, resp.Type, test.ShouldEqual, MessageDragUpdate)
	test.That(t, resp.Transform.Position, test.ShouldResemble, r3.Vector{Y: 0.5, Z: 0.6})
	test.That(t, resp.IsColliding, test.ShouldBeTrue)

	resp = call(t, conn, Request{Type: MessageDragEnd, ID: "a"})
	test.That(t, resp.Type, test.ShouldEqual, MessageDragEnd)
	resp = call(t, conn, Request{Type: MessageState})
	test.That(t, resp.State.NavigationEnabled, test.ShouldBeTrue)
	test.That(t, resp.State.CanUndo, test.ShouldBeTrue)
	test.That(t, objectState(t, resp.State, "a").IsColliding, test.ShouldBeFalse)

	resp = call(t, conn, Request{Type: MessageUndo})
	test.That(t, resp.Applied, test.ShouldBeTrue)
	test.That(t, resp.ID, test.ShouldEqual, "a")
	test.That(t, resp.Change.Before.Position, test.ShouldResemble, r3.Vector{Y: 0.5})
	resp = call(t, conn, Request{Type: MessageRedo})
	test.That(t, resp.Applied, test.ShouldBeTrue)

	resp = call(t, conn, Request{Type: MessageRotate, ID: "a", Axis: "y", Radians: 0.3})
	test.That(t, resp.Type, test.ShouldEqual, MessageRotate)
	test.That(t, resp.Transform.Rotation.Pitch, test.ShouldAlmostEqual, 0.3)

	resp = call(t, conn, Request{Type: MessageSetVertical, Enabled: true})
	test.That(t, resp.Type, test.ShouldEqual, MessageSetVertical)
	resp = call(t, conn, Request{Type: MessageState})
	test.That(t, resp.State.VerticalMovement, test.ShouldBeTrue)

	t.Run("errors", func(t *testing.T) {
		resp := call(t, conn, Request{Type: MessageRotate, ID: "a", Axis: "w"})
		test.That(t, resp.Type, test.ShouldEqual, MessageError)
		resp = call(t, conn, Request{Type: MessageDragStart, ID: "missing"})
		test.That(t, resp.Type, test.ShouldEqual, MessageError)
		test.That(t, resp.ID, test.ShouldEqual, "missing")
		resp = call(t, conn, Request{Type: MessageDragEnd, ID: "b"})
		test.That(t, resp.Type, test.ShouldEqual, MessageError)
		resp = call(t, conn, Request{Type: "teleport"})
		test.That(t, resp.Type, test.ShouldEqual, MessageError)
		test.That(t, resp.Error, test.ShouldContainSubstring, "unknown message type")
	})
}

func TestTextBoxMessages(t *testing.T) {
	s, httpServer := newTestServer(t)
	conn := dial(t, httpServer)
	defer conn.Close()

	resp := call(t, conn, Request{Type: MessageTextBoxCreate, Position: &[3]float64{1, 5, 3}})
	test.That(t, resp.TextBox, test.ShouldNotBeNil)
	id := resp.TextBox.ID
	test.That(t, id, test.ShouldNotBeEmpty)
	test.That(t, resp.TextBox.Position, test.ShouldResemble, r3.Vector{X: 1, Y: scene.DefaultTextBoxY, Z: 3})

	text := "Hello World!"
	resp = call(t, conn, Request{Type: MessageTextBoxUpdate, ID: id, Patch: &TextBoxPatchMsg{Text: &text}})
	test.That(t, resp.TextBox.Text, test.ShouldEqual, text)

	test.That(t, call(t, conn, Request{Type: MessageTextBoxDragStart, ID: id}).Type, test.ShouldEqual, MessageTextBoxDragStart)
	resp = call(t, conn, Request{Type: MessageTextBoxDragUpdate, ID: id, Translation: &[3]float64{2, 0, 0}})
	test.That(t, *resp.Position, test.ShouldResemble, [3]float64{3, scene.DefaultTextBoxY, 3})
	test.That(t, resp.IsColliding, test.ShouldBeFalse)
	test.That(t, call(t, conn, Request{Type: MessageTextBoxDragEnd, ID: id}).Type, test.ShouldEqual, MessageTextBoxDragEnd)

	resp = call(t, conn, Request{Type: MessageState})
	test.That(t, resp.State.TextBoxes, test.ShouldHaveLength, 1)

	test.That(t, call(t, conn, Request{Type: MessageTextBoxDelete, ID: id}).Type, test.ShouldEqual, MessageTextBoxDelete)
	test.That(t, call(t, conn, Request{Type: MessageTextBoxDelete, ID: id}).Type, test.ShouldEqual, MessageError)
	test.That(t, s.State().TextBoxes, test.ShouldBeEmpty)
}

func TestBroadcastAndDisconnect(t *testing.T) {
	s, httpServer := newTestServer(t)
	watcher := dial(t, httpServer)
	defer watcher.Close()
	actor := dial(t, httpServer)

	test.That(t, call(t, actor, Request{Type: MessageDragStart, ID: "b"}).Type, test.ShouldEqual, MessageDragStart)

	// other clients see changes as coalesced scene broadcasts
	var msg Response
	for msg.Type != MessageScene {
		test.That(t, watcher.ReadJSON(&msg), test.ShouldBeNil)
	}
	test.That(t, objectState(t, msg.State, "b").IsDragging, test.ShouldBeTrue)

	// a client that leaves mid-gesture does not leave the camera locked
	test.That(t, actor.Close(), test.ShouldBeNil)
	deadline := time.Now().Add(10 * time.Second)
	for s.editor.Resolver().IsDragging("b") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	test.That(t, s.editor.Resolver().IsDragging("b"), test.ShouldBeFalse)
	test.That(t, s.nav.Enabled(), test.ShouldBeTrue)
}

func TestHealth(t *testing.T) {
	_, httpServer := newTestServer(t)
	resp, err := http.Get(httpServer.URL + "/healthz")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
}

func TestGestureOwnership(t *testing.T) {
	s, httpServer := newTestServer(t)
	first := dial(t, httpServer)
	defer first.Close()
	second := dial(t, httpServer)
	defer second.Close()

	test.That(t, call(t, first, Request{Type: MessageDragStart, ID: "a"}).Type, test.ShouldEqual, MessageDragStart)

	resp := call(t, second, Request{Type: MessageDragEnd, ID: "a"})
	test.That(t, resp.Type, test.ShouldEqual, MessageError)
	test.That(t, resp.Error, test.ShouldContainSubstring, "another client")
	resp = call(t, second, Request{Type: MessageDragUpdate, ID: "a", Translation: &[3]float64{0, 0, 2}})
	test.That(t, resp.Type, test.ShouldEqual, MessageError)
	test.That(t, s.editor.Resolver().IsDragging("a"), test.ShouldBeTrue)

	// navigation stays locked until the last gesture ends
	test.That(t, call(t, second, Request{Type: MessageDragStart, ID: "b"}).Type, test.ShouldEqual, MessageDragStart)
	test.That(t, call(t, first, Request{Type: MessageDragEnd, ID: "a"}).Type, test.ShouldEqual, MessageDragEnd)
	resp = call(t, first, Request{Type: MessageState})
	test.That(t, resp.State.NavigationEnabled, test.ShouldBeFalse)
	test.That(t, call(t, second, Request{Type: MessageDragEnd, ID: "b"}).Type, test.ShouldEqual, MessageDragEnd)
	resp = call(t, first, Request{Type: MessageState})
	test.That(t, resp.State.NavigationEnabled, test.ShouldBeTrue)
}
