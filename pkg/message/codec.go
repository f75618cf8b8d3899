package message

import (
	"strings"
	"time"
	"unicode/utf8"
)

// NewPost validates the draft and stamps a creation time if absent. Length
// ceilings depend on the subtype: mirrored posts are rebroadcast to an outer
// network with a 280-character limit, plain posts allow 500.
func NewPost(subtype PostSubtype, creator string, payload PostPayload, createdAt time.Time) (*Post, error) {
	if strings.TrimSpace(payload.Content) == "" && strings.TrimSpace(payload.Reference) == "" {
		return nil, ErrEmptyPost
	}
	limit := MaxPostLength
	if subtype == PostSubtypeMirrorPost || subtype == PostSubtypeMirrorReply {
		limit = MaxMirroredLength
	}
	if utf8.RuneCountInString(payload.Content) > limit {
		return nil, ErrContentTooLong
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Post{
		Subtype:   subtype,
		Creator:   creator,
		CreatedAt: createdAt,
		Payload:   payload,
	}, nil
}

func NewModeration(subtype ModerationSubtype, creator string, reference string, createdAt time.Time) (*Moderation, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, ErrEmptyReference
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Moderation{
		Subtype:   subtype,
		Creator:   creator,
		CreatedAt: createdAt,
		Payload:   ModerationPayload{Reference: reference},
	}, nil
}

func NewConnection(subtype ConnectionSubtype, creator string, name string, createdAt time.Time) (*Connection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyValue
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Connection{
		Subtype:   subtype,
		Creator:   creator,
		CreatedAt: createdAt,
		Payload:   ConnectionPayload{Name: name},
	}, nil
}

func NewProfile(subtype ProfileSubtype, creator string, key, value string, createdAt time.Time) (*Profile, error) {
	if strings.TrimSpace(value) == "" {
		return nil, ErrEmptyValue
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Profile{
		Subtype:   subtype,
		Creator:   creator,
		CreatedAt: createdAt,
		Payload:   ProfilePayload{Key: key, Value: value},
	}, nil
}
