package tetris

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models"
)

var (
	// ErrSessionNotFound は指定されたセッションが存在しない (または別ユーザーのもの) 場合に返されます。
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed は終了済みのセッションに操作しようとした場合に返されます。
	ErrSessionClosed = errors.New("session closed")
)

const (
	writeWait      = 10 * time.Second  // 1回の書き込みの制限時間
	pongWait       = 300 * time.Second // Pongを待つ時間 (5分)
	pingPeriod     = 60 * time.Second  // Pingの送信間隔
	maxMessageSize = 1024              // 受信メッセージの最大サイズ
	sendBuffer     = 64                // クライアントごとの送信バッファ
)

// ResultRecorder はゲーム結果の保存先です。database.ResultRepository が実装します。
type ResultRecorder interface {
	CreateResult(tx *sql.Tx, userID string, score, lines, level int) (*models.Result, error)
}

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID    string          // このクライアントに紐づくユーザーのID
	SessionID string          // このクライアントが接続しているセッションのID
	Conn      *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send      chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed    bool            // チャネルが閉じられたかどうかのフラグ
	mu        sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false // 既に閉じられている
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// PlayerInputEvent はクライアントから送られてくる操作メッセージです。
//
//   {"type":"key","key":"move_left","pressed":true}
//   {"type":"start"} / {"type":"pause"} / {"type":"reset"} / {"type":"ghost"}
type PlayerInputEvent struct {
	UserID    string `json:"-"` // 送信元 (サーバー側で上書き)
	SessionID string `json:"-"`
	Type      string `json:"type"`
	Key       string `json:"key,omitempty"`
	Pressed   bool   `json:"pressed,omitempty"`
	Visible   *bool  `json:"visible,omitempty"` // ghost: 省略時は切り替え
}

// StateMessage はクライアントへ送るステージ状態のメッセージです。
type StateMessage struct {
	Type      string   `json:"type"` // 常に "state"
	SessionID string   `json:"session_id"`
	Snapshot  Snapshot `json:"snapshot"`
}

// GameSession は1人のプレイヤーが遊ぶ1つのステージです。
type GameSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	runner *Runner
	cancel context.CancelFunc

	mu        sync.Mutex
	lastState []byte // 最後に配信したメッセージ
	closed    bool
}

// LastState は最後に配信した状態メッセージを返します。まだなければ nil です。
func (s *GameSession) LastState() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}

// Closed はセッションが終了済みかどうかを返します。
func (s *GameSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// broadcastEvent はセッションの状態が変わったことを配信ループに伝えます。
type broadcastEvent struct {
	SessionID string
	Message   []byte
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	cfg      StageConfig
	recorder ResultRecorder // nilの場合は結果を保存しない

	sessions    map[string]*GameSession // sessionID -> GameSession
	clients     map[string]*Client      // sessionID -> 接続中のクライアント
	register    chan *Client
	unregister  chan *Client
	broadcast   chan broadcastEvent
	inputEvents chan PlayerInputEvent
	quit        chan struct{}
	quitOnce    sync.Once
	mu          sync.RWMutex // sessions と clients マップへのアクセスを保護する

	// newPicker はセッションごとの乱数源を作ります (テスト用に差し替え可能)
	newPicker func() Picker
}

// NewSessionManager は新しい SessionManager インスタンスを作成し、そのメインイベントループをバックグラウンドで開始します。
//
// Parameters:
//   cfg      : 各セッションのステージ設定
//   recorder : ゲーム結果の保存先 (nilなら保存しない)
// Returns:
//   *SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(cfg StageConfig, recorder ResultRecorder) *SessionManager {
	sm := &SessionManager{
		cfg:         cfg,
		recorder:    recorder,
		sessions:    make(map[string]*GameSession),
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan broadcastEvent, 512),
		inputEvents: make(chan PlayerInputEvent, 512),
		quit:        make(chan struct{}),
		newPicker:   func() Picker { return nil },
	}
	go sm.Run()
	return sm
}

// Run は SessionManager のメインイベントループです。
// クライアントの登録/解除、プレイヤー入力の振り分け、状態のブロードキャストを処理します。
// ステージそのものの進行は各セッションの Runner が行います。
func (sm *SessionManager) Run() {
	for {
		select {
		case client := <-sm.register:
			sm.mu.Lock()
			if old, ok := sm.clients[client.SessionID]; ok && old != client {
				log.Printf("[SessionManager] Replacing existing connection for session %s", client.SessionID)
				old.SafeClose()
			}
			sm.clients[client.SessionID] = client
			session := sm.sessions[client.SessionID]
			sm.mu.Unlock()
			log.Printf("[SessionManager] Client registered: %s (Session: %s)", client.UserID, client.SessionID)

			// 接続直後に最新の状態を送る
			if session != nil {
				if msg := session.LastState(); msg != nil {
					client.SafeSend(msg)
				}
			}

		case client := <-sm.unregister:
			sm.mu.Lock()
			if registered, ok := sm.clients[client.SessionID]; ok && registered == client {
				delete(sm.clients, client.SessionID)
				log.Printf("[SessionManager] Client unregistered: %s (Session: %s)", client.UserID, client.SessionID)
			}
			client.SafeClose()
			sm.mu.Unlock()

		case event := <-sm.inputEvents:
			if err := sm.HandleInput(event); err != nil {
				log.Printf("[SessionManager] Ignored input from %s: %v", event.UserID, err)
			}

		case event := <-sm.broadcast:
			sm.mu.RLock()
			client, ok := sm.clients[event.SessionID]
			sm.mu.RUnlock()
			if ok && !client.SafeSend(event.Message) {
				log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
			}

		case <-sm.quit:
			log.Printf("[SessionManager] シャットダウンシグナルを受信、メインループを終了します")
			return
		}
	}
}

// CreateSession は新しいゲームセッションを作成し、そのステージのイベントループを開始します。
// ゲームはクライアントから start が送られるまで始まりません。
//
// Parameters:
//   userID : セッションを所有するユーザーのID
// Returns:
//   *GameSession: 作成されたセッション
func (sm *SessionManager) CreateSession(userID string) *GameSession {
	ctx, cancel := context.WithCancel(context.Background())
	session := &GameSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}
	session.runner = NewRunner(sm.cfg, sm.newPicker(), func(snap Snapshot) {
		sm.publish(session, snap)
	})
	session.runner.OnGameOver(func(stats Stats) {
		sm.recordResult(session, stats)
	})

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	go session.runner.Run(ctx)
	log.Printf("[SessionManager] Session %s created for user %s", session.ID, userID)
	return session
}

// publish は状態が前回の配信から変わっていた場合だけクライアントに送ります。
// Runner のゴルーチンから呼び出されます。
func (sm *SessionManager) publish(session *GameSession, snap Snapshot) {
	msg, err := json.Marshal(StateMessage{Type: "state", SessionID: session.ID, Snapshot: snap})
	if err != nil {
		log.Printf("[SessionManager] Error marshaling state for session %s: %v", session.ID, err)
		return
	}

	session.mu.Lock()
	if bytes.Equal(msg, session.lastState) {
		session.mu.Unlock()
		return
	}
	session.lastState = msg
	session.mu.Unlock()

	select {
	case sm.broadcast <- broadcastEvent{SessionID: session.ID, Message: msg}:
	case <-sm.quit:
	default:
		log.Printf("[SessionManager] Broadcast channel full, skipping update for session: %s", session.ID)
	}
}

// recordResult はゲームオーバー時の成績を非同期で保存します。保存の失敗はログに残すだけです。
func (sm *SessionManager) recordResult(session *GameSession, stats Stats) {
	if sm.recorder == nil {
		return
	}
	go func() {
		result, err := sm.recorder.CreateResult(nil, session.UserID, stats.Score, stats.Lines, stats.Level)
		if err != nil {
			log.Printf("[SessionManager] Failed to record result for session %s: %v", session.ID, err)
			return
		}
		log.Printf("[SessionManager] Result %d recorded for user %s (score %d)", result.ID, session.UserID, stats.Score)
	}()
}

// GetSession は指定されたIDのセッションを取得します。
func (sm *SessionManager) GetSession(sessionID string) (*GameSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	return session, ok
}

// RegisterClient はWebSocket接続をセッションに結び付け、読み書きのゴルーチンを開始します。
// 同じセッションに既存の接続があれば置き換えます。
//
// Parameters:
//   sessionID : 接続先のセッションID
//   userID    : クライアントのユーザーID (セッションの所有者である必要があります)
//   conn      : WebSocketコネクション
// Returns:
//   error: セッションが存在しない場合は ErrSessionNotFound、終了済みの場合は ErrSessionClosed
func (sm *SessionManager) RegisterClient(sessionID, userID string, conn *websocket.Conn) error {
	session, ok := sm.GetSession(sessionID)
	if !ok || session.UserID != userID {
		return ErrSessionNotFound
	}
	if session.Closed() {
		return ErrSessionClosed
	}

	client := &Client{
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
	}

	go sm.readPump(client)
	go client.writePump()

	select {
	case sm.register <- client:
	case <-sm.quit:
		return ErrSessionClosed
	}
	return nil
}

// HandleInput はクライアントの操作をセッションのステージへ渡します。
// 操作はステージのゴルーチンで非同期に実行されます。
func (sm *SessionManager) HandleInput(event PlayerInputEvent) error {
	session, ok := sm.GetSession(event.SessionID)
	if !ok || session.UserID != event.UserID {
		return ErrSessionNotFound
	}
	if session.Closed() {
		return ErrSessionClosed
	}

	var action func(s *Stage)
	switch event.Type {
	case "key":
		key, err := ParseKey(event.Key)
		if err != nil {
			return err
		}
		action = func(s *Stage) {
			if event.Pressed {
				s.Press(key)
			} else {
				s.Release(key)
			}
		}
	case "start":
		action = func(s *Stage) {
			if err := s.Start(); err != nil {
				log.Printf("[SessionManager] Start rejected for session %s: %v", session.ID, err)
			}
		}
	case "pause":
		action = func(s *Stage) { s.Pause() }
	case "reset":
		action = func(s *Stage) { s.Reset() }
	case "ghost":
		action = func(s *Stage) {
			if event.Visible != nil {
				s.SetGhostVisible(*event.Visible)
			} else {
				s.ToggleGhost()
			}
		}
	default:
		return errors.New("unknown message type: " + event.Type)
	}

	if !session.runner.Do(action) {
		return ErrSessionClosed
	}
	return nil
}

// readPump はクライアントからのWebSocketメッセージを読み込み、 inputEvents チャネルに送信します。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SessionManager] Panic in readPump for user %s: %v", client.UserID, r)
		}
		select {
		case sm.unregister <- client:
		case <-sm.quit:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for user %s: %v", client.UserID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		var event PlayerInputEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("[SessionManager] Failed to unmarshal input message from %s: %v", client.UserID, err)
			continue
		}
		// 送信元はメッセージの内容ではなく接続から決める
		event.UserID = client.UserID
		event.SessionID = client.SessionID

		select {
		case sm.inputEvents <- event:
		default:
			log.Printf("[SessionManager] Input events channel is full, dropping message from user %s", client.UserID)
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
// クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// マネージャーがチャネルを閉じた
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[Client] Error sending ping for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}

// EndSession はセッションのステージを停止し、接続中のクライアントを切断して削除します。
//
// Parameters:
//   sessionID : 終了するセッションのID
// Returns:
//   error: セッションが存在しない場合は ErrSessionNotFound
func (sm *SessionManager) EndSession(sessionID string) error {
	sm.mu.Lock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(sm.sessions, sessionID)
	client := sm.clients[sessionID]
	delete(sm.clients, sessionID)
	sm.mu.Unlock()

	session.mu.Lock()
	session.closed = true
	session.mu.Unlock()
	session.cancel()
	session.runner.Close()
	if client != nil {
		client.SafeClose()
	}
	log.Printf("[SessionManager] Session %s ended.", sessionID)
	return nil
}

// SessionCount は現在のセッション数を返します。
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Shutdown はSessionManagerを安全にシャットダウンします
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] シャットダウン開始...")
	sm.quitOnce.Do(func() { close(sm.quit) })

	sm.mu.RLock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.RUnlock()

	for _, id := range ids {
		sm.EndSession(id)
	}
	log.Printf("[SessionManager] シャットダウン完了")
}
