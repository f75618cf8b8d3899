package chat

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zkchat/go-client/internal/identity"
	"zkchat/go-client/internal/platform/cache"
	"zkchat/go-client/pkg/message"
)

var (
	ErrNoIdentity  = errors.New("no identity imported")
	ErrNotDirect   = errors.New("chat is not a direct conversation")
	ErrPeerUnknown = errors.New("peer has no published ecdh key")
)

const cacheNameECDH = "ecdh_by_address"

// MessageLister pages direct messages between two addresses, older than the
// given cursor.
type MessageLister interface {
	ListDirectMessages(ctx context.Context, receiver, sender string, offsetMillis int64) ([]message.ChatMessage, error)
}

// ChatPublisher submits a finished chat envelope and returns the
// server-confirmed record, including the authoritative timestamp and id.
type ChatPublisher interface {
	PublishChatMessage(ctx context.Context, m message.ChatMessage) (message.ChatMessage, error)
}

// ChatLister fetches the chats known to the indexer for an address.
type ChatLister interface {
	ListActiveChats(ctx context.Context, address string) ([]message.Chat, error)
}

// ECDHResolver maps a wallet address to its published ECDH public key.
type ECDHResolver interface {
	ECDHByAddress(ctx context.Context, address string) (string, error)
}

// API bundles the external collaborators the client consumes.
type API interface {
	MessageLister
	ChatPublisher
	ChatLister
	ECDHResolver
}

// Metrics counts per-message outcomes; nil-safe no-op by default.
type Metrics interface {
	MessageDecrypted()
	DecryptFailed()
}

type nopMetrics struct{}

func (nopMetrics) MessageDecrypted() {}
func (nopMetrics) DecryptFailed()    {}

// Session is the imported local identity: the wallet address and the ECDH
// pair derived from the signing key.
type Session struct {
	Address string
	ECDH    identity.ECDHKeyPair
}

// Client is the per-identity conversation store: active chats, per-peer
// message ordering, and the messageId-keyed message map. Mutations hold one
// mutex; each read-then-write touches a single peer's bucket.
type Client struct {
	mu      sync.Mutex
	log     *slog.Logger
	api     API
	store   BucketStore
	hub     *Hub
	cipher  *Cipher
	ecdhLRU *cache.Cache
	metrics Metrics
	now     func() time.Time

	session     *Session
	activeChats []message.Chat
	dms         map[string][]string
	messages    map[string]message.ChatMessage
}

type ClientOption func(*Client)

func WithMetrics(m Metrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(api API, store BucketStore, hub *Hub, cipher *Cipher, log *slog.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub()
	}
	if cipher == nil {
		cipher = NewCipher()
	}
	if store == nil {
		store = NewInMemoryBucketStore()
	}
	c := &Client{
		log:      log,
		api:      api,
		store:    store,
		hub:      hub,
		cipher:   cipher,
		ecdhLRU:  cache.New(10*time.Minute, 512),
		metrics:  nopMetrics{},
		now:      time.Now,
		dms:      make(map[string][]string),
		messages: make(map[string]message.ChatMessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Hub() *Hub { return c.hub }

// ImportIdentity installs the session and loads its persisted bucket.
// Corrupt or missing state starts empty.
func (c *Client) ImportIdentity(session Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &session
	c.messages = make(map[string]message.ChatMessage)
	c.dms = make(map[string][]string)
	bucket, err := c.store.Load(session.Address)
	if err != nil {
		c.log.Warn("chat bucket load failed, starting empty", "err", err)
		bucket = Bucket{}
	}
	c.activeChats = bucket.ActiveChats
}

// CreateDM opens (or re-opens) a direct conversation with receiver. For
// anonymous chats a random token is mixed into an HMAC under the ECDH
// private key, producing the linkage hash that lets the receiver tie the
// anonymous sender's messages together without learning the address.
func (c *Client) CreateDM(receiver string, anonymous bool) (message.Chat, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return message.Chat{}, ErrNoIdentity
	}

	chat := message.Chat{
		Type:       message.ChatDirect,
		Receiver:   receiver,
		SenderECDH: session.ECDH.Pub,
	}
	if anonymous {
		token := make([]byte, 16)
		if _, err := rand.Read(token); err != nil {
			return message.Chat{}, err
		}
		chat.SenderHash = linkageHash(session.ECDH.PrivateKey(), receiver, hex.EncodeToString(token))
	}
	c.AppendActiveChats(chat)
	return chat, nil
}

// AppendActiveChats inserts a chat if no tuple-identical chat exists.
// Idempotent: re-adding an identical chat is a no-op and CHAT_CREATED fires
// exactly once per distinct chat.
func (c *Client) AppendActiveChats(chat message.Chat) {
	c.mu.Lock()
	for _, existing := range c.activeChats {
		if existing.Equal(chat) {
			c.mu.Unlock()
			return
		}
	}
	c.activeChats = append(c.activeChats, chat)
	c.persistLocked()
	c.mu.Unlock()

	c.hub.publish(Event{Type: EventChatCreated, Chat: &chat})
}

// ActiveChats returns a copy of the chat list.
func (c *Client) ActiveChats() []message.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Chat(nil), c.activeChats...)
}

// FetchActiveChats pulls the chats known to the indexer for the current
// address and merges them into the local list.
func (c *Client) FetchActiveChats(ctx context.Context) ([]message.Chat, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, ErrNoIdentity
	}
	chats, err := c.api.ListActiveChats(ctx, session.Address)
	if err != nil {
		return nil, fmt.Errorf("list active chats: %w", err)
	}
	for _, chat := range chats {
		c.AppendActiveChats(chat)
	}
	return chats, nil
}

// FetchMessagesByChat requests messages older than the earliest known one
// for the chat's peer, decrypts direct ciphertexts, stores what is new and
// emits MESSAGE_APPENDED per stored message. A ciphertext that fails to
// decrypt marks the single message and never aborts the batch; a key that
// cannot be derived at all fails the fetch with nothing stored, so the page
// can be refetched and decrypted once the directory recovers.
func (c *Client) FetchMessagesByChat(ctx context.Context, chat message.Chat) ([]message.ChatMessage, error) {
	c.mu.Lock()
	session := c.session
	cursor := c.cursorLocked(chat.Receiver)
	c.mu.Unlock()
	if session == nil {
		return nil, ErrNoIdentity
	}
	if chat.Type != message.ChatDirect {
		return nil, ErrNotDirect
	}

	records, err := c.api.ListDirectMessages(ctx, chat.Receiver, session.Address, cursor)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}

	sharedKey, keyErr := c.sharedKeyForChat(ctx, session, chat)

	appended := make([]message.ChatMessage, 0, len(records))
	for _, record := range records {
		msg := record
		if msg.Type == message.ChatDirect && msg.Ciphertext != "" {
			key, ok, err := c.decryptKey(session, msg, sharedKey, keyErr)
			if err != nil {
				return nil, err
			}
			switch {
			case !ok:
				msg.EncryptionError = true
				c.metrics.DecryptFailed()
			default:
				content, err := c.cipher.Decrypt(msg.Ciphertext, key)
				if err != nil {
					msg.EncryptionError = true
					c.metrics.DecryptFailed()
				} else {
					msg.Content = content
					c.metrics.MessageDecrypted()
				}
			}
		}

		if c.insertAndAppend(chat.Receiver, msg) {
			appended = append(appended, msg)
			c.hub.publish(Event{Type: EventMessageAppended, Message: &msg})
		}
	}
	return appended, nil
}

// SendDirectMessage encrypts content for the chat's peer, publishes it, and
// only after server confirmation prepends the confirmed record locally and
// emits MESSAGE_PREPENDED.
func (c *Client) SendDirectMessage(ctx context.Context, chat message.Chat, content string) (message.ChatMessage, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return message.ChatMessage{}, ErrNoIdentity
	}
	if chat.Type != message.ChatDirect {
		return message.ChatMessage{}, ErrNotDirect
	}

	sharedKey, err := c.sharedKeyForPeer(ctx, session, chat.Receiver)
	if err != nil {
		return message.ChatMessage{}, err
	}
	ciphertext, err := c.cipher.Encrypt(content, sharedKey)
	if err != nil {
		return message.ChatMessage{}, err
	}

	sender := message.Sender{Address: session.Address}
	if chat.SenderHash != "" {
		// Anonymous conversation: identify by ecdh key and linkage hash only.
		sender = message.Sender{ECDH: chat.SenderECDH, Hash: chat.SenderHash}
	}

	outbound := message.ChatMessage{
		Type:       message.ChatDirect,
		Timestamp:  c.now(),
		Sender:     sender,
		Receiver:   chat.Receiver,
		Ciphertext: ciphertext,
	}
	outbound.MessageID = message.DeriveChatMessageID(outbound)

	confirmed, err := c.api.PublishChatMessage(ctx, outbound)
	if err != nil {
		return message.ChatMessage{}, fmt.Errorf("publish chat message: %w", err)
	}
	confirmed.Content = content

	// Optimistic local insert keyed by the server-confirmed id.
	c.mu.Lock()
	c.messages[confirmed.MessageID] = confirmed
	c.dms[chat.Receiver] = append([]string{confirmed.MessageID}, c.dms[chat.Receiver]...)
	c.mu.Unlock()

	c.hub.publish(Event{Type: EventMessagePrepended, Message: &confirmed})
	return confirmed, nil
}

// GetMessage looks a message up by id.
func (c *Client) GetMessage(messageID string) (message.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.messages[messageID]
	return msg, ok
}

// MessageOrder returns the stored id order for a peer.
func (c *Client) MessageOrder(receiver string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dms[receiver]...)
}

func (c *Client) insertAndAppend(receiver string, msg message.ChatMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.messages[msg.MessageID]; ok {
		return false
	}
	c.messages[msg.MessageID] = msg
	c.dms[receiver] = append(c.dms[receiver], msg.MessageID)
	return true
}

// cursorLocked is the pagination offset: the timestamp of the earliest
// known message for the peer, or now when nothing is known yet.
func (c *Client) cursorLocked(receiver string) int64 {
	order := c.dms[receiver]
	if len(order) == 0 {
		return c.now().UnixMilli()
	}
	last, ok := c.messages[order[len(order)-1]]
	if !ok {
		return c.now().UnixMilli()
	}
	return last.Timestamp.UnixMilli()
}

// sharedKeyForChat derives the conversation-level key. Anonymous peers have
// no directory entry; their ECDH public key rides on the chat record itself,
// so any senderECDH other than our own is used directly.
func (c *Client) sharedKeyForChat(ctx context.Context, session *Session, chat message.Chat) (string, error) {
	if chat.SenderECDH != "" && chat.SenderECDH != session.ECDH.Pub {
		return DeriveSharedKey(chat.SenderECDH, session.ECDH.PrivateKey())
	}
	return c.sharedKeyForPeer(ctx, session, chat.Receiver)
}

// decryptKey picks the key for one inbound message: an anonymous sender's
// key rides on the message, everyone else shares the conversation key. A
// conversation key that could not be derived fails the fetch; a malformed
// per-message key fails only that message.
func (c *Client) decryptKey(session *Session, msg message.ChatMessage, chatKey string, chatKeyErr error) (string, bool, error) {
	if msg.Sender.ECDH != "" && msg.Sender.ECDH != session.ECDH.Pub {
		key, err := DeriveSharedKey(msg.Sender.ECDH, session.ECDH.PrivateKey())
		if err != nil {
			return "", false, nil
		}
		return key, true, nil
	}
	if chatKeyErr != nil {
		return "", false, chatKeyErr
	}
	return chatKey, true, nil
}

func (c *Client) sharedKeyForPeer(ctx context.Context, session *Session, peerAddress string) (string, error) {
	peerECDH, ok := c.ecdhLRU.Get(cacheNameECDH, peerAddress)
	if !ok {
		resolved, err := c.api.ECDHByAddress(ctx, peerAddress)
		if err != nil {
			return "", fmt.Errorf("resolve peer ecdh: %w", err)
		}
		if resolved == "" {
			return "", ErrPeerUnknown
		}
		c.ecdhLRU.Put(cacheNameECDH, peerAddress, resolved)
		peerECDH = resolved
	}
	return DeriveSharedKey(peerECDH, session.ECDH.PrivateKey())
}

func (c *Client) persistLocked() {
	if c.session == nil {
		return
	}
	bucket := Bucket{ActiveChats: append([]message.Chat(nil), c.activeChats...)}
	if err := c.store.Save(c.session.Address, bucket); err != nil {
		c.log.Warn("chat bucket save failed", "err", err)
	}
}

func linkageHash(ecdhPriv []byte, receiver, token string) string {
	mac := hmac.New(sha256.New, ecdhPriv)
	mac.Write([]byte(receiver))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
