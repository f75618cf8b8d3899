// Package indexer is the HTTP client for the remote indexing service: group
// membership proofs, message publishing, chat listing and the ECDH
// directory. Responses use the indexer's {error, payload} envelope with
// snake_case record fields.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"zkchat/go-client/internal/zk"
	"zkchat/go-client/pkg/message"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

func New(baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: defaultTimeout},
		log:  log,
	}
}

// apiEnvelope is the indexer's uniform response shape.
type apiEnvelope struct {
	Error   bool            `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

// MerkleProof fetches the inclusion proof for a commitment in a group.
// A 404 means the identity is not (yet) indexed as a member.
func (c *Client) MerkleProof(ctx context.Context, groupID, leafHex string) (zk.MerkleProof, error) {
	endpoint := fmt.Sprintf("%s/v1/proofs/%s/%s", c.base, url.PathEscape(groupID), url.PathEscape(leafHex))
	var proof zk.MerkleProof
	status, err := c.getJSON(ctx, endpoint, &proof)
	if err != nil {
		if status == http.StatusNotFound {
			return zk.MerkleProof{}, zk.ErrMembershipNotFound
		}
		return zk.MerkleProof{}, err
	}
	return proof, nil
}

// PublishRequest is a finished envelope plus its authorization artifact.
type PublishRequest struct {
	Type      string           `json:"type"`
	Subtype   string           `json:"subtype"`
	Creator   string           `json:"creator"`
	CreatedAt int64            `json:"createdAt"`
	MessageID string           `json:"messageId"`
	Payload   any              `json:"payload"`
	Proof     zk.Authorization `json:"proof"`
}

// PublishReceipt is the server-confirmed canonical record.
type PublishReceipt struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

func (c *Client) PublishEnvelope(ctx context.Context, req PublishRequest) (PublishReceipt, error) {
	var receipt PublishReceipt
	if err := c.postJSON(ctx, c.base+"/v1/messages", req, &receipt); err != nil {
		return PublishReceipt{}, err
	}
	return receipt, nil
}

// chatMessageRecord is the wire shape of a stored chat message.
type chatMessageRecord struct {
	MessageID       string `json:"message_id"`
	Type            string `json:"type"`
	SenderAddress   string `json:"sender_address"`
	SenderECDH      string `json:"sender_pubkey"`
	SenderHash      string `json:"sender_hash"`
	ReceiverAddress string `json:"receiver_address"`
	Ciphertext      string `json:"ciphertext"`
	Content         string `json:"content"`
	Reference       string `json:"reference"`
	Attachment      string `json:"attachment"`
	RLN             string `json:"rln_serialized_proof"`
	Timestamp       int64  `json:"timestamp"`
}

func (r chatMessageRecord) toMessage() message.ChatMessage {
	return message.ChatMessage{
		MessageID: r.MessageID,
		Type:      message.ChatType(r.Type),
		Timestamp: time.UnixMilli(r.Timestamp),
		Sender: message.Sender{
			Address: r.SenderAddress,
			ECDH:    r.SenderECDH,
			Hash:    r.SenderHash,
		},
		Receiver:   r.ReceiverAddress,
		Ciphertext: r.Ciphertext,
		Content:    r.Content,
		Reference:  r.Reference,
		Attachment: r.Attachment,
		RLN:        r.RLN,
	}
}

func toRecord(m message.ChatMessage) chatMessageRecord {
	return chatMessageRecord{
		MessageID:       m.MessageID,
		Type:            string(m.Type),
		SenderAddress:   m.Sender.Address,
		SenderECDH:      m.Sender.ECDH,
		SenderHash:      m.Sender.Hash,
		ReceiverAddress: m.Receiver,
		Ciphertext:      m.Ciphertext,
		Reference:       m.Reference,
		Attachment:      m.Attachment,
		RLN:             m.RLN,
		Timestamp:       m.Timestamp.UnixMilli(),
	}
}

// ListDirectMessages pages DMs between two addresses, older than offset.
func (c *Client) ListDirectMessages(ctx context.Context, receiver, sender string, offsetMillis int64) ([]message.ChatMessage, error) {
	endpoint := fmt.Sprintf("%s/v1/zkchat/chat-messages/dm/%s/%s?offset=%s",
		c.base, url.PathEscape(receiver), url.PathEscape(sender), strconv.FormatInt(offsetMillis, 10))
	var records []chatMessageRecord
	if _, err := c.getJSON(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	out := make([]message.ChatMessage, 0, len(records))
	for _, r := range records {
		out = append(out, r.toMessage())
	}
	return out, nil
}

// PublishChatMessage submits an encrypted chat message and returns the
// confirmed record with the authoritative timestamp.
func (c *Client) PublishChatMessage(ctx context.Context, m message.ChatMessage) (message.ChatMessage, error) {
	var confirmed chatMessageRecord
	if err := c.postJSON(ctx, c.base+"/v1/zkchat/chat-messages", toRecord(m), &confirmed); err != nil {
		return message.ChatMessage{}, err
	}
	return confirmed.toMessage(), nil
}

type chatRecord struct {
	Type       string `json:"type"`
	Receiver   string `json:"receiver"`
	SenderECDH string `json:"sender_pubkey"`
	SenderHash string `json:"sender_hash"`
}

// ListActiveChats fetches the conversations the indexer knows for address.
func (c *Client) ListActiveChats(ctx context.Context, address string) ([]message.Chat, error) {
	endpoint := fmt.Sprintf("%s/v1/zkchat/chats/dm/%s", c.base, url.PathEscape(address))
	var records []chatRecord
	if _, err := c.getJSON(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	out := make([]message.Chat, 0, len(records))
	for _, r := range records {
		out = append(out, message.Chat{
			Type:       message.ChatType(r.Type),
			Receiver:   r.Receiver,
			SenderECDH: r.SenderECDH,
			SenderHash: r.SenderHash,
		})
	}
	return out, nil
}

// ECDHByAddress resolves the published key-agreement key for an address.
func (c *Client) ECDHByAddress(ctx context.Context, address string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/ecdh/%s", c.base, url.PathEscape(address))
	var ecdh string
	if _, err := c.getJSON(ctx, endpoint, &ecdh); err != nil {
		return "", err
	}
	return ecdh, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, out)
	return err
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("indexer returned %s", resp.Status)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode indexer response: %w", err)
	}
	if env.Error {
		var msg string
		_ = json.Unmarshal(env.Payload, &msg)
		return resp.StatusCode, fmt.Errorf("indexer error: %s", msg)
	}
	if out != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode indexer payload: %w", err)
		}
	}
	return resp.StatusCode, nil
}
