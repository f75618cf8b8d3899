// Package message defines the canonical envelopes exchanged with the
// indexer and the content-addressed identifiers used to deduplicate them.
package message

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

type Type string

const (
	TypePost       Type = "POST"
	TypeModeration Type = "MODERATION"
	TypeConnection Type = "CONNECTION"
	TypeProfile    Type = "PROFILE"
	TypeChat       Type = "CHAT"
)

type PostSubtype string

const (
	PostSubtypeDefault     PostSubtype = ""
	PostSubtypeReply       PostSubtype = "REPLY"
	PostSubtypeRepost      PostSubtype = "REPOST"
	PostSubtypeMirrorPost  PostSubtype = "M_POST"
	PostSubtypeMirrorReply PostSubtype = "M_REPLY"
)

type ModerationSubtype string

const (
	ModerationSubtypeLike   ModerationSubtype = "LIKE"
	ModerationSubtypeBlock  ModerationSubtype = "BLOCK"
	ModerationSubtypeGlobal ModerationSubtype = "GLOBAL"
)

type ConnectionSubtype string

const (
	ConnectionSubtypeFollow ConnectionSubtype = "FOLLOW"
	ConnectionSubtypeBlock  ConnectionSubtype = "BLOCK"
)

type ProfileSubtype string

const (
	ProfileSubtypeName         ProfileSubtype = "NAME"
	ProfileSubtypeBio          ProfileSubtype = "BIO"
	ProfileSubtypeProfileImage ProfileSubtype = "PROFILE_IMAGE"
	ProfileSubtypeCoverImage   ProfileSubtype = "COVER_IMAGE"
	ProfileSubtypeCustom       ProfileSubtype = "CUSTOM"
)

// Content ceilings enforced before any crypto or network work.
const (
	MaxPostLength     = 500
	MaxMirroredLength = 280
)

var (
	ErrContentTooLong = errors.New("message content exceeds the length ceiling")
	ErrEmptyPost      = errors.New("post requires content or a reference")
	ErrEmptyReference = errors.New("reference is required")
	ErrEmptyValue     = errors.New("value is required")
)

type PostPayload struct {
	Topic      string `json:"topic"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Reference  string `json:"reference"`
	Attachment string `json:"attachment"`
}

type Post struct {
	Subtype   PostSubtype `json:"subtype"`
	Creator   string      `json:"creator"`
	CreatedAt time.Time   `json:"createdAt"`
	Payload   PostPayload `json:"payload"`
}

type ModerationPayload struct {
	Reference string `json:"reference"`
}

type Moderation struct {
	Subtype   ModerationSubtype `json:"subtype"`
	Creator   string            `json:"creator"`
	CreatedAt time.Time         `json:"createdAt"`
	Payload   ModerationPayload `json:"payload"`
}

type ConnectionPayload struct {
	Name string `json:"name"`
}

type Connection struct {
	Subtype   ConnectionSubtype `json:"subtype"`
	Creator   string            `json:"creator"`
	CreatedAt time.Time         `json:"createdAt"`
	Payload   ConnectionPayload `json:"payload"`
}

type ProfilePayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Profile struct {
	Subtype   ProfileSubtype `json:"subtype"`
	Creator   string         `json:"creator"`
	CreatedAt time.Time      `json:"createdAt"`
	Payload   ProfilePayload `json:"payload"`
}

// Envelope is implemented by every message variant. MessageID is the hex
// SHA-256 digest over the variant's canonical field concatenation; it is a
// pure function of content, so a republish or resync deduplicates without a
// server round trip.
type Envelope interface {
	Type() Type
	MessageID() string
}

func (p *Post) Type() Type       { return TypePost }
func (m *Moderation) Type() Type { return TypeModeration }
func (c *Connection) Type() Type { return TypeConnection }
func (p *Profile) Type() Type    { return TypeProfile }

// The concatenation order below is the interop contract: type, subtype,
// creator, decimal-ms timestamp, then payload fields in declaration order,
// all UTF-8. Changing it orphans every stored id.

func (p *Post) MessageID() string {
	data := string(TypePost) + string(p.Subtype) + p.Creator + unixMillis(p.CreatedAt) +
		p.Payload.Topic + p.Payload.Title + p.Payload.Content + p.Payload.Reference + p.Payload.Attachment
	return hashHex(data)
}

func (m *Moderation) MessageID() string {
	data := string(TypeModeration) + string(m.Subtype) + m.Creator + unixMillis(m.CreatedAt) +
		m.Payload.Reference
	return hashHex(data)
}

func (c *Connection) MessageID() string {
	data := string(TypeConnection) + string(c.Subtype) + c.Creator + unixMillis(c.CreatedAt) +
		c.Payload.Name
	return hashHex(data)
}

func (p *Profile) MessageID() string {
	data := string(TypeProfile) + string(p.Subtype) + p.Creator + unixMillis(p.CreatedAt) +
		p.Payload.Key + p.Payload.Value
	return hashHex(data)
}

func unixMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func hashHex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// HashHex exposes the canonical content hash used as the proof signal.
func HashHex(data string) string { return hashHex(data) }
