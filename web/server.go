// Package web exposes an editor to browser clients over a WebSocket. Every client message is handled on a
// single interaction loop, so gestures from all clients are resolved one at a time in arrival order.
package web

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/stagecraft/scenecore/editor"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/placement"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/utils"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Navigation tracks whether clients may move the camera. It is handed to the editor as its
// placement.NavigationLock and reported to clients in every state.
type Navigation struct {
	disabled atomic.Bool
}

// NewNavigation returns a navigation lock that starts enabled.
func NewNavigation() *Navigation {
	return &Navigation{}
}

// SetNavigationEnabled switches camera navigation.
func (n *Navigation) SetNavigationEnabled(enabled bool) {
	n.disabled.Store(!enabled)
}

// Enabled reports whether camera navigation is allowed.
func (n *Navigation) Enabled() bool {
	return !n.disabled.Load()
}

// client is one WebSocket connection. Writes are serialized; reads happen on the connection's handler.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	// gestures left open by the client, ended if it disconnects; owned by the interaction loop
	gestures     map[string]bool
	textGestures map[string]bool
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

type envelope struct {
	client     *client
	req        Request
	disconnect bool
}

// Options configure a Server.
type Options struct {
	// BroadcastInterval is the quiet period scene broadcasts are coalesced over.
	BroadcastInterval time.Duration
}

// Server is the WebSocket UI adapter.
type Server struct {
	editor    *editor.Editor
	nav       *Navigation
	logger    logging.Logger
	upgrader  websocket.Upgrader
	requests  chan envelope
	workers   utils.StoppableWorkers
	broadcast func(func())

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer starts the interaction loop of a server over ed. nav must be the lock ed was built with.
func NewServer(ed *editor.Editor, nav *Navigation, opts Options, logger logging.Logger) *Server {
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = 50 * time.Millisecond
	}
	s := &Server{
		editor: ed,
		nav:    nav,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		requests:  make(chan envelope),
		broadcast: debounce.New(opts.BroadcastInterval),
		clients:   map[*client]struct{}{},
	}
	s.workers = utils.NewStoppableWorkers(s.interactionLoop)
	return s
}

// Handler returns the HTTP handler serving the WebSocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: writeWait}
	errCh := make(chan error, 1)
	utils.PanicCapturingGo(func() {
		errCh <- httpServer.Serve(ln)
	})
	s.logger.Infow("serving", "address", ln.Addr().String())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the interaction loop and disconnects every client.
func (s *Server) Close() error {
	s.workers.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for c := range s.clients {
		if closeErr := c.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		delete(s.clients, c)
	}
	return err
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, gestures: map[string]bool{}, textGestures: map[string]bool{}}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debugw("client connected", "remote", r.RemoteAddr)

	ctx := s.workers.Context()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		utils.UncheckedError(conn.Close())
		s.submit(ctx, envelope{client: c, disconnect: true})
		s.logger.Debugw("client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.logger.Debugw("failed to read message", "error", err)
			}
			return
		}
		if !s.submit(ctx, envelope{client: c, req: req}) {
			return
		}
	}
}

func (s *Server) submit(ctx context.Context, env envelope) bool {
	select {
	case s.requests <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) interactionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-s.requests:
			if env.disconnect {
				s.endGestures(env.client)
				continue
			}
			resp, changed := s.handle(env.client, env.req)
			if err := env.client.writeJSON(resp); err != nil {
				s.logger.Debugw("failed to reply", "type", env.req.Type, "error", err)
			}
			if changed {
				s.broadcast(s.broadcastState)
			}
		}
	}
}

// endGestures commits whatever a departed client was in the middle of.
func (s *Server) endGestures(c *client) {
	resolver := s.editor.Resolver()
	for id := range c.gestures {
		utils.UncheckedError(resolver.OnDragEnd(id))
	}
	for id := range c.textGestures {
		utils.UncheckedError(resolver.OnTextBoxDragEnd(id))
	}
	if len(c.gestures)+len(c.textGestures) > 0 {
		s.broadcast(s.broadcastState)
	}
}

// NewGestureNotOwnedError is returned when a client updates or ends a gesture another client started.
func NewGestureNotOwnedError(id string) error {
	return errors.Errorf("the gesture on %q belongs to another client", id)
}

func errorResponse(req Request, err error) Response {
	return Response{Type: MessageError, ID: req.ID, Error: err.Error()}
}

// handle runs one request and reports whether the scene changed.
func (s *Server) handle(c *client, req Request) (Response, bool) {
	resolver := s.editor.Resolver()
	resp := Response{Type: req.Type, ID: req.ID}
	var err error
	switch req.Type {
	case MessageState:
		state := s.State()
		resp.State = &state
		return resp, false

	case MessageDragStart:
		if err = resolver.OnDragStart(req.ID); err == nil {
			c.gestures[req.ID] = true
		}
	case MessageDragUpdate:
		if err = s.checkOwner(c.gestures, req.ID); err == nil {
			var t referenceframe.Transform
			t, err = resolver.OnDragUpdate(req.ID, placementDelta(req))
			resp.Transform = &t
			resp.IsColliding = resolver.IsColliding(req.ID)
		}
	case MessageDragEnd:
		if err = s.checkOwner(c.gestures, req.ID); err == nil {
			delete(c.gestures, req.ID)
			err = resolver.OnDragEnd(req.ID)
		}
	case MessageRotate:
		var axis referenceframe.Axis
		if axis, err = referenceframe.ParseAxis(req.Axis); err == nil {
			var t referenceframe.Transform
			t, err = resolver.OnRotationSliderChange(req.ID, axis, req.Radians)
			resp.Transform = &t
		}
	case MessageSetVertical:
		resolver.SetVerticalMovement(req.Enabled)

	case MessageTextBoxCreate:
		pos := vector(req.Position)
		tb := s.editor.CreateTextBox(pos.X, pos.Z)
		resp.ID = tb.ID
		resp.TextBox = &tb
	case MessageTextBoxUpdate:
		var tb scene.TextBox
		if tb, err = s.editor.UpdateTextBox(req.ID, req.Patch.patch()); err == nil {
			resp.TextBox = &tb
		}
	case MessageTextBoxDelete:
		err = s.editor.DeleteTextBox(s.workers.Context(), req.ID)
	case MessageTextBoxDragStart:
		if err = resolver.OnTextBoxDragStart(req.ID); err == nil {
			c.textGestures[req.ID] = true
		}
	case MessageTextBoxDragUpdate:
		var pos r3.Vector
		if err = s.checkOwner(c.textGestures, req.ID); err != nil {
			break
		}
		if pos, err = resolver.OnTextBoxDragUpdate(req.ID, vector(req.Translation)); err == nil {
			arr := referenceframe.Vector3(pos)
			resp.Position = &arr
			resp.IsColliding = resolver.IsColliding(req.ID)
		}
	case MessageTextBoxDragEnd:
		if err = s.checkOwner(c.textGestures, req.ID); err == nil {
			delete(c.textGestures, req.ID)
			err = resolver.OnTextBoxDragEnd(req.ID)
		}

	case MessageUndo, MessageRedo:
		var change scene.Change
		if req.Type == MessageUndo {
			change, resp.Applied, err = s.editor.Undo()
		} else {
			change, resp.Applied, err = s.editor.Redo()
		}
		if change.EntityID != "" {
			resp.ID = change.EntityID
			resp.Change = &change
		}

	default:
		err = errors.Errorf("unknown message type %q", req.Type)
	}
	if err != nil {
		return errorResponse(req, err), false
	}
	return resp, true
}

// checkOwner refuses to touch a gesture another client started.
func (s *Server) checkOwner(owned map[string]bool, id string) error {
	if !owned[id] && s.editor.Resolver().IsDragging(id) {
		return NewGestureNotOwnedError(id)
	}
	return nil
}

func placementDelta(req Request) placement.Delta {
	return placement.Delta{Translation: vector(req.Translation), Rotation: euler(req.Rotation)}
}

// State returns the current scene with gesture feedback.
func (s *Server) State() State {
	store := s.editor.Store()
	store.RefreshBounds()
	resolver := s.editor.Resolver()
	snapshot := store.Snapshot()
	state := State{
		Objects:           make([]ObjectState, 0, len(snapshot.Objects)),
		TextBoxes:         snapshot.TextBoxes,
		VerticalMovement:  resolver.VerticalMovement(),
		NavigationEnabled: s.nav.Enabled(),
		CanUndo:           resolver.History().CanUndo(),
		CanRedo:           resolver.History().CanRedo(),
	}
	for _, obj := range snapshot.Objects {
		entry := ObjectState{
			ID:          obj.ID,
			Transform:   obj.Transform,
			IsDragging:  resolver.IsDragging(obj.ID),
			IsColliding: resolver.IsColliding(obj.ID),
		}
		if obj.Bounds != nil {
			entry.Bounds = &Bounds{
				Min: referenceframe.Vector3(obj.Bounds.Min),
				Max: referenceframe.Vector3(obj.Bounds.Max),
			}
		}
		state.Objects = append(state.Objects, entry)
	}
	return state
}

func (s *Server) broadcastState() {
	state := s.State()
	msg := Response{Type: MessageScene, State: &state}
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			s.logger.Debugw("failed to broadcast", "error", err)
		}
	}
}
