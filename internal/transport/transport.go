// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the contracts between the Session Controller
// and whatever concrete chat surface delivers messages (spec §6). The
// core depends only on these interfaces; the Telegram implementation
// lives in internal/telegram, and no web transport is included.
package transport

import "context"

// AttachmentType enumerates the inbound attachment kinds spec §6 defines.
type AttachmentType string

const (
	AttachmentPhoto    AttachmentType = "photo"
	AttachmentDocument AttachmentType = "document"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentVoice    AttachmentType = "voice"
)

// Attachment is one inbound file reference.
type Attachment struct {
	Type      AttachmentType
	FileID    string
	LocalPath string
}

// Forward carries the provenance of a forwarded message, if any.
type Forward struct {
	FromUser string
	FromChat string
}

// InboundMessage is the normalized shape delivered by the transport
// (spec §6's inbound-message contract).
type InboundMessage struct {
	ID          string
	ChatID      string
	UserID      string
	MessageID   string
	Text        string
	Attachments []Attachment
	Forward     *Forward

	// Raw carries transport-specific metadata the controller inspects for
	// cron-originated deliveries: raw["cron"] == true plus raw["jobId"].
	Raw map[string]interface{}
}

// IsCron reports whether this message was injected by the Cron Service
// rather than typed by a user (spec §6: `raw.cron === true`).
func (m InboundMessage) IsCron() bool {
	if m.Raw == nil {
		return false
	}
	v, _ := m.Raw["cron"].(bool)
	return v
}

// CronJobID returns the originating cron job id, if IsCron is true.
func (m InboundMessage) CronJobID() string {
	if m.Raw == nil {
		return ""
	}
	id, _ := m.Raw["jobId"].(string)
	return id
}

// OutboundSink is the send/typing surface the transport provides (spec §6).
type OutboundSink interface {
	Send(ctx context.Context, chatID, text string) error
	SendFile(ctx context.Context, chatID, path, caption string) error
	Typing(ctx context.Context, chatID string) error
}
