package message

import "time"

type ChatType string

const (
	ChatDirect     ChatType = "DIRECT"
	ChatPublicRoom ChatType = "PUBLIC_ROOM"
)

// Chat identifies a conversation. Two chats are the same conversation iff
// the full (Type, Receiver, SenderECDH, SenderHash) tuple matches; SenderHash
// is the proof-of-linkage token carried by anonymous conversations.
type Chat struct {
	Type       ChatType `json:"type"`
	Receiver   string   `json:"receiver"`
	SenderECDH string   `json:"senderECDH"`
	SenderHash string   `json:"senderHash,omitempty"`
}

func (c Chat) Equal(other Chat) bool {
	return c.Type == other.Type &&
		c.Receiver == other.Receiver &&
		c.SenderECDH == other.SenderECDH &&
		c.SenderHash == other.SenderHash
}

// Sender describes who authored a chat message: a wallet address for
// pseudonymous senders, or an ECDH public key plus linkage hash for
// anonymous ones.
type Sender struct {
	Address string `json:"address,omitempty"`
	ECDH    string `json:"ecdh,omitempty"`
	Hash    string `json:"hash,omitempty"`
}

// ChatMessage is created on fetch or on optimistic local send. Content is
// populated only after a successful decrypt; EncryptionError marks messages
// whose ciphertext is present but could not be decrypted, which the UI must
// render as undecryptable rather than showing stale text.
type ChatMessage struct {
	MessageID       string    `json:"messageId"`
	Type            ChatType  `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	Sender          Sender    `json:"sender"`
	Receiver        string    `json:"receiver"`
	Ciphertext      string    `json:"ciphertext,omitempty"`
	Content         string    `json:"content,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	Attachment      string    `json:"attachment,omitempty"`
	RLN             string    `json:"rln,omitempty"`
	EncryptionError bool      `json:"encryptionError,omitempty"`
}

// DeriveChatMessageID computes the canonical id for a chat message. Field
// order mirrors the other variants: type, decimal-ms timestamp, the sender's
// proof material (rln, else address, else ecdh+hash), receiver, then the
// variant body (ciphertext for DIRECT, content+reference+attachment for
// PUBLIC_ROOM).
func DeriveChatMessageID(m ChatMessage) string {
	data := string(m.Type)
	data += unixMillis(m.Timestamp)

	switch {
	case m.RLN != "":
		data += m.RLN
	case m.Sender.Address != "":
		data += m.Sender.Address
	case m.Sender.ECDH != "":
		data += m.Sender.ECDH
		data += m.Sender.Hash
	}

	data += m.Receiver

	switch m.Type {
	case ChatDirect:
		data += m.Ciphertext
	case ChatPublicRoom:
		data += m.Content
		data += m.Reference
		data += m.Attachment
	}

	return hashHex(data)
}
