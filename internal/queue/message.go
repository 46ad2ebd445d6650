package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"redact-backend/internal/shared/util"
)

// MessageVersion is the current payload version written by EncodeMessage.
const MessageVersion = 1

// ErrTestEvent is returned for the probe notification S3 sends when a bucket
// notification is first configured.
var ErrTestEvent = errors.New("s3 test event")

// Message is the trigger payload for one uploaded document.
type Message struct {
	DocumentID string `json:"documentId,omitempty"`
	OwnerID    string `json:"ownerId,omitempty"`
	// OwnerHash is set when the message came from a storage notification,
	// which only carries the hashed owner segment of the key.
	OwnerHash  string `json:"ownerHash,omitempty"`
	ObjectKey  string `json:"objectKey"`
	Filename   string `json:"filename,omitempty"`
	Size       int64  `json:"size"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DecodeMessages accepts either a Message or an S3 event notification and
// returns one Message per uploaded object. Records outside the uploads
// namespace are skipped.
func DecodeMessages(payload []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, err
	}

	if _, ok := probe["Records"]; ok {
		var evt events.S3Event
		if err := json.Unmarshal(trimmed, &evt); err != nil {
			return nil, fmt.Errorf("decode s3 event: %w", err)
		}
		return FromS3Event(evt)
	}
	if _, ok := probe["Event"]; ok {
		var test events.S3TestEvent
		if err := json.Unmarshal(trimmed, &test); err == nil && test.Event == "s3:TestEvent" {
			return nil, ErrTestEvent
		}
	}

	msg, err := DecodeMessage(trimmed)
	if err != nil {
		return nil, err
	}
	return []Message{msg}, nil
}

// FromS3Event converts object-created records into Messages.
func FromS3Event(evt events.S3Event) ([]Message, error) {
	out := make([]Message, 0, len(evt.Records))
	for _, rec := range evt.Records {
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("unescape key %q: %w", rec.S3.Object.Key, err)
		}
		key = storeKey(key)
		ownerHash, docID, name, ok := ParseUploadKey(key)
		if !ok {
			continue
		}
		out = append(out, Message{
			DocumentID: docID,
			OwnerHash:  ownerHash,
			ObjectKey:  key,
			Filename:   name,
			Size:       rec.S3.Object.Size,
			EnqueuedAt: rec.EventTime.UTC().Format("2006-01-02T15:04:05Z"),
			Version:    MessageVersion,
		})
	}
	return out, nil
}

// storeKey drops any bucket prefix configured in front of the uploads namespace.
func storeKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if strings.HasPrefix(key, util.NamespaceUploads+"/") {
		return key
	}
	if i := strings.Index(key, "/"+util.NamespaceUploads+"/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// ParseUploadKey splits "uploads/<owner-hash>/<document-id>/<name>".
func ParseUploadKey(key string) (ownerHash, documentID, name string, ok bool) {
	ownerHash, ok = util.OwnerFromKey(util.NamespaceUploads, key)
	if !ok {
		return "", "", "", false
	}
	rest := strings.TrimPrefix(strings.TrimLeft(key, "/"), util.NamespaceUploads+"/"+ownerHash+"/")
	documentID, name, found := strings.Cut(rest, "/")
	if !found || documentID == "" || name == "" || strings.Contains(name, "/") {
		return "", "", "", false
	}
	return ownerHash, documentID, path.Base(name), true
}
