package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/observability"
)

var errWSClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the first wait before redialing a dropped connection.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the doubling redial backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long the connection may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription ID.
	SubscribeTimeout time.Duration
	// Logger receives connection and protocol errors. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
//
// The read loop owns subscription bookkeeping: a subscribe reply moves the
// watch from pending (keyed by request ID) to active (keyed by subscription
// ID) before the caller is woken, so a notification that follows the reply
// immediately always finds its watch.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	nextID  uint64
	pending map[uint64]*watch
	active  map[int64]*watch
}

// watch is one subscription and the caller-facing channel it feeds.
type watch struct {
	subscribe   string
	unsubscribe string
	params      []interface{}
	target      string      // signature or account, for logs
	handle      interface{} // the receive-only channel handed out
	oneShot     bool
	subID       int64
	confirmed   bool // the node has assigned subID
	ready       chan error

	mu    sync.Mutex
	ended bool
	emit  func(slot int64, value json.RawMessage) error
	close func()
}

// deliver passes one notification to the caller; a one-shot watch ends after it.
func (w *watch) deliver(slot int64, value json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ended {
		return nil
	}
	err := w.emit(slot, value)
	if w.oneShot {
		w.ended = true
		w.close()
	}
	return err
}

// end closes the caller's channel once.
func (w *watch) end() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.ended {
		w.ended = true
		w.close()
	}
}

func newSignatureWatch(signature, commitment string) (*watch, <-chan SignatureNotification) {
	ch := make(chan SignatureNotification, 1)
	w := &watch{
		subscribe:   "signatureSubscribe",
		unsubscribe: "signatureUnsubscribe",
		params:      []interface{}{signature, map[string]string{"commitment": commitment}},
		target:      signature,
		handle:      (<-chan SignatureNotification)(ch),
		oneShot:     true,
		ready:       make(chan error, 1),
		close:       func() { close(ch) },
	}
	w.emit = func(slot int64, value json.RawMessage) error {
		var v wsSignatureValue
		err := json.Unmarshal(value, &v)
		// sent even when undecodable so the waiter is released
		ch <- SignatureNotification{Signature: signature, Slot: slot, Err: v.Err}
		return err
	}
	return w, ch
}

func newAccountWatch(account, commitment string) (*watch, <-chan AccountNotification) {
	ch := make(chan AccountNotification, 1)
	w := &watch{
		subscribe:   "accountSubscribe",
		unsubscribe: "accountUnsubscribe",
		params: []interface{}{account, map[string]string{
			"commitment": commitment,
			"encoding":   "base64",
		}},
		target: account,
		handle: (<-chan AccountNotification)(ch),
		ready:  make(chan error, 1),
		close:  func() { close(ch) },
	}
	w.emit = func(slot int64, value json.RawMessage) error {
		var v wsAccountValue
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		// keep only the newest balance
		select {
		case <-ch:
		default:
		}
		ch <- AccountNotification{Account: account, Slot: slot, Lamports: v.Lamports}
		return nil
	}
	return w, ch
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   cfg.Logger,
		pending:  make(map[uint64]*watch),
		active:   make(map[int64]*watch),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(2)
	go c.readLoop(conn)
	go c.pingLoop()

	return c, nil
}

func (c *WSClientImpl) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// SubscribeSignature waits for a transaction signature to reach commitment.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature, commitment string) (<-chan SignatureNotification, error) {
	w, ch := newSignatureWatch(signature, commitment)
	if err := c.subscribe(ctx, w); err != nil {
		return nil, err
	}
	return ch, nil
}

// UnsubscribeSignature abandons the watch behind ch, if still open.
func (c *WSClientImpl) UnsubscribeSignature(ch <-chan SignatureNotification) {
	c.unsubscribe(ch)
}

// SubscribeAccount streams lamport changes of account until unsubscribed.
func (c *WSClientImpl) SubscribeAccount(ctx context.Context, account, commitment string) (<-chan AccountNotification, error) {
	w, ch := newAccountWatch(account, commitment)
	if err := c.subscribe(ctx, w); err != nil {
		return nil, err
	}
	return ch, nil
}

// UnsubscribeAccount ends the watch behind ch.
func (c *WSClientImpl) UnsubscribeAccount(ch <-chan AccountNotification) {
	c.unsubscribe(ch)
}

// subscribe sends w's subscribe request and waits for the node to confirm it.
func (c *WSClientImpl) subscribe(ctx context.Context, w *watch) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errWSClosed
	}
	reqID := c.track(w)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.forget(reqID, w)
		return errors.New("websocket reconnecting")
	}
	if err := c.write(conn, wsRequest{JSONRPC: "2.0", ID: reqID, Method: w.subscribe, Params: w.params}); err != nil {
		c.forget(reqID, w)
		return err
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case err := <-w.ready:
		return err
	case <-timer.C:
		c.forget(reqID, w)
		return fmt.Errorf("%s: timeout after %v", w.subscribe, c.config.SubscribeTimeout)
	case <-ctx.Done():
		c.forget(reqID, w)
		return ctx.Err()
	case <-c.ctx.Done():
		return errWSClosed
	}
}

// unsubscribe detaches the watch handed out as handle, closes its channel and
// tells the node to stop notifying.
func (c *WSClientImpl) unsubscribe(handle interface{}) {
	c.mu.Lock()
	w := c.detach(handle)
	var (
		conn  *websocket.Conn
		reqID uint64
		subID int64
	)
	if w != nil && w.confirmed && c.conn != nil {
		c.nextID++
		reqID, conn, subID = c.nextID, c.conn, w.subID
	}
	c.mu.Unlock()

	if w == nil {
		return
	}
	w.end()

	if conn != nil {
		req := wsRequest{JSONRPC: "2.0", ID: reqID, Method: w.unsubscribe, Params: []interface{}{subID}}
		if err := c.write(conn, req); err != nil {
			c.logger.Debug("unsubscribe failed", zap.String("target", w.target), zap.Error(err))
		}
	}
}

// detach removes the watch for handle from both maps. Callers hold c.mu.
func (c *WSClientImpl) detach(handle interface{}) *watch {
	for subID, w := range c.active {
		if w.handle == handle {
			delete(c.active, subID)
			return w
		}
	}
	for reqID, w := range c.pending {
		if w.handle == handle {
			delete(c.pending, reqID)
			return w
		}
	}
	return nil
}

// track assigns the next request ID to w. Callers hold c.mu.
func (c *WSClientImpl) track(w *watch) uint64 {
	c.nextID++
	c.pending[c.nextID] = w
	return c.nextID
}

// forget drops w whether it is still pending or already active.
func (c *WSClientImpl) forget(reqID uint64, w *watch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, reqID)
	if w.confirmed && c.active[w.subID] == w {
		delete(c.active, w.subID)
	}
}

func (c *WSClientImpl) write(conn *websocket.Conn, req wsRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// Close ends every watch and closes the connection. It is safe to call more than once.
func (c *WSClientImpl) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	pending, active := c.pending, c.active
	c.pending = make(map[uint64]*watch)
	c.active = make(map[int64]*watch)
	c.mu.Unlock()

	c.cancel()

	for _, w := range active {
		w.end()
	}
	for _, w := range pending {
		if w.confirmed {
			// awaiting resubscription; its caller already holds the channel
			w.end()
		}
	}

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}

	c.wg.Wait()
	return nil
}

// readLoop reads until the connection drops, then redials and resubscribes.
func (c *WSClientImpl) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.readConn(conn)
		conn.Close()
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("websocket connection lost", zap.Error(err))

		if conn = c.redial(); conn == nil {
			return
		}
	}
}

func (c *WSClientImpl) readConn(conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(message)
	}
}

// redial retries with doubling backoff until it connects or the client closes.
func (c *WSClientImpl) redial() *websocket.Conn {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	delay := c.config.ReconnectDelay
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := c.dial(c.ctx)
		if err != nil {
			delay = min(delay*2, c.config.MaxReconnectDelay)
			c.logger.Warn("websocket redial failed", zap.Duration("retry_in", delay), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()

		observability.RecordWSReconnect()
		c.resubscribe(conn)
		return conn
	}
}

// resubscribe re-sends the subscribe request of every watch the node had
// confirmed. Subscription IDs do not survive a new connection.
func (c *WSClientImpl) resubscribe(conn *websocket.Conn) {
	type resend struct {
		id uint64
		w  *watch
	}

	c.mu.Lock()
	var out []resend
	for id, w := range c.pending {
		if w.confirmed {
			delete(c.pending, id)
			out = append(out, resend{w: w})
		}
	}
	for subID, w := range c.active {
		delete(c.active, subID)
		out = append(out, resend{w: w})
	}
	for i := range out {
		out[i].id = c.track(out[i].w)
	}
	c.mu.Unlock()

	for _, r := range out {
		req := wsRequest{JSONRPC: "2.0", ID: r.id, Method: r.w.subscribe, Params: r.w.params}
		if err := c.write(conn, req); err != nil {
			// stays pending; retried after the next reconnect
			c.logger.Warn("resubscribe failed", zap.String("target", r.w.target), zap.Error(err))
		}
	}
	if len(out) > 0 {
		c.logger.Info("resubscribed watches", zap.Int("count", len(out)))
	}
}

// handleMessage dispatches a subscribe reply, an error reply or a notification.
func (c *WSClientImpl) handleMessage(raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn("undecodable websocket message", zap.Error(err))
		return
	}

	switch {
	case strings.HasSuffix(msg.Method, "Notification") && msg.Params != nil:
		c.route(msg.Method, msg.Params)
	case msg.ID != nil && msg.Error != nil:
		c.logger.Warn("websocket error response",
			zap.Uint64("id", *msg.ID),
			zap.Int("code", msg.Error.Code),
			zap.String("message", msg.Error.Message))
		c.settle(*msg.ID, 0, &RPCError{Code: msg.Error.Code, Message: msg.Error.Message})
	case msg.ID != nil:
		// unsubscribe replies carry a bool and match no pending watch
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			c.settle(*msg.ID, 0, fmt.Errorf("decode subscription id: %w", err))
			return
		}
		c.settle(*msg.ID, subID, nil)
	default:
		c.logger.Debug("ignored websocket message", zap.String("method", msg.Method))
	}
}

// settle completes the pending subscribe for reqID.
func (c *WSClientImpl) settle(reqID uint64, subID int64, err error) {
	c.mu.Lock()
	w, ok := c.pending[reqID]
	if ok {
		delete(c.pending, reqID)
		if err == nil {
			w.subID = subID
			w.confirmed = true
			c.active[subID] = w
		}
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	select {
	case w.ready <- err:
	default:
	}
}

// route hands a notification to its watch. The node drops one-shot
// subscriptions after notifying, so those are removed here.
func (c *WSClientImpl) route(method string, p *wsNotificationParams) {
	c.mu.Lock()
	w, ok := c.active[p.Subscription]
	if ok && w.oneShot {
		delete(c.active, p.Subscription)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("notification for unknown subscription",
			zap.String("method", method),
			zap.Int64("subscription", p.Subscription))
		return
	}

	var slot int64
	if p.Result.Context != nil {
		slot = p.Result.Context.Slot
	}
	if err := w.deliver(slot, p.Result.Value); err != nil {
		c.logger.Warn("undecodable notification", zap.String("method", method), zap.String("target", w.target), zap.Error(err))
	}
	if method == "signatureNotification" {
		observability.RecordWSNotification()
	}
}

// pingLoop keeps idle connections alive; a missed pong ends the read loop.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage is any frame the node sends: a reply carries id, a notification carries method.
type wsMessage struct {
	ID     *uint64               `json:"id"`
	Result json.RawMessage       `json:"result"`
	Error  *RPCError             `json:"error"`
	Method string                `json:"method"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext      `json:"context"`
	Value   json.RawMessage `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}

type wsAccountValue struct {
	Lamports uint64 `json:"lamports"`
}
