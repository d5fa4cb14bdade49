package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rickgao/reya-positions/internal/connection"
)

// Router parses raw WebSocket frames and dispatches them to the handler
// registered for their channel.
type Router interface {
	// Start begins routing frames from the input buffer.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	logger *slog.Logger

	// Input from Connection Manager
	input      *connection.GrowableBuffer[connection.RawMessage]
	dispatcher Dispatcher

	now func() time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats RouterStats
}

// NewRouter creates a new Message Router.
func NewRouter(input *connection.GrowableBuffer[connection.RawMessage], dispatcher Dispatcher, logger *slog.Logger) Router {
	return newRouter(input, dispatcher, logger)
}

func newRouter(input *connection.GrowableBuffer[connection.RawMessage], dispatcher Dispatcher, logger *slog.Logger) *router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		logger:     logger,
		input:      input,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started")

	return nil
}

// Stop gracefully shuts down the router. It closes the input buffer to
// release the blocked reader.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}
	r.input.Close()

	// Wait for goroutine to finish
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

// routeLoop is the main routing goroutine. Frames are handled one at a
// time, so handlers for a channel run in arrival order.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		raw, ok := r.input.Receive()
		if !ok {
			r.logger.Info("input buffer closed")
			return
		}
		if r.ctx.Err() != nil {
			return
		}
		r.route(raw)
	}
}

// route parses and routes a single frame.
func (r *router) route(raw connection.RawMessage) {
	r.count(&r.stats.MessagesReceived)

	var env envelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		r.logger.Warn("failed to parse frame", "conn_id", raw.ConnID, "error", err, snippet(raw.Data))
		r.count(&r.stats.ParseErrors)
		return
	}

	switch env.Type {
	case connection.TypePing:
		r.answerPing(env)

	case connection.TypeChannelData:
		if !hasPayload(env.Data) {
			r.logger.Debug("channel data without payload", "channel", env.Channel)
			return
		}
		r.dispatch(env.Channel, env.Data)

	case connection.TypeSubscribed:
		r.logger.Debug("subscription confirmed", "channel", env.Channel)
		payload := env.Contents
		if !hasPayload(payload) {
			payload = env.Data
		}
		if hasPayload(payload) {
			r.dispatch(env.Channel, payload)
		}

	case connection.TypeUnsubscribed:
		r.logger.Debug("unsubscription confirmed", "channel", env.Channel)

	case connection.TypeError:
		r.logger.Warn("server error", "message", env.Message, "channel", env.Channel)
		r.count(&r.stats.ServerErrors)

	default:
		r.logger.Debug("skipping message type", "type", env.Type)
		r.count(&r.stats.UnknownMessages)
	}
}

// answerPing echoes the server's timestamp, or the current time in
// milliseconds when the ping carries none.
func (r *router) answerPing(env envelope) {
	ts := env.Timestamp
	if f, err := ts.Float64(); err != nil || f == 0 {
		ts = json.Number(strconv.FormatInt(r.now().UnixMilli(), 10))
	}

	if err := r.dispatcher.Send(connection.PongFrame{Type: connection.TypePong, Timestamp: ts}); err != nil {
		r.logger.Warn("failed to send pong", "error", err)
		return
	}
	r.count(&r.stats.PingsAnswered)
}

// dispatch invokes the channel's handler, recovering a panic so one bad
// payload cannot stop routing.
func (r *router) dispatch(channel string, payload json.RawMessage) {
	handler, ok := r.dispatcher.Handler(channel)
	if !ok {
		r.logger.Debug("no handler for channel", "channel", channel)
		r.count(&r.stats.Unhandled)
		return
	}

	if err := r.invoke(handler, payload); err != nil {
		r.logger.Error("channel handler panicked", "channel", channel, "error", err)
		r.count(&r.stats.HandlerPanics)
		return
	}
	r.count(&r.stats.MessagesRouted)
}

func (r *router) invoke(handler connection.Handler, payload json.RawMessage) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	handler(payload)
	return nil
}
