// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telegram implements transport.OutboundSink and an inbound
// listener on top of Telegram's Bot API (spec §6). Grounded on
// igoryanba-ricochet's internal/telegram/bot.go: a *bot.Bot wrapped in a
// struct that registers one default update handler, authorizes senders
// against an allow-list, and exposes Send/SendPhoto/SendDocument-style
// methods translated here into the transport.OutboundSink contract.
package telegram

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/wingedpig/bridge/internal/chatmd"
	"github.com/wingedpig/bridge/internal/transport"
)

// Bot wraps a Telegram bot connection, translating between Telegram's
// int64 chat/user ids and the bridge's string chat ids (spec §6's
// transport contract is transport-agnostic on chat id shape).
type Bot struct {
	api            *tgbot.Bot
	token          string
	allowedUserIDs map[int64]bool

	inbound chan transport.InboundMessage
}

// Option configures New beyond the token.
type Option func(*Bot)

// WithAllowedUsers restricts who may send messages to the bot. An empty
// list allows everyone, matching the teacher's `len(allowed) > 0` gate.
func WithAllowedUsers(ids []int64) Option {
	return func(b *Bot) {
		for _, id := range ids {
			b.allowedUserIDs[id] = true
		}
	}
}

// New creates a Telegram-backed transport. token must be non-empty; use
// transport.Console for local/dev runs instead of a Bot with no token.
func New(token string, opts ...Option) (*Bot, error) {
	b := &Bot{
		token:          token,
		allowedUserIDs: make(map[int64]bool),
		inbound:        make(chan transport.InboundMessage, 64),
	}
	for _, opt := range opts {
		opt(b)
	}

	botOpts := []tgbot.Option{
		tgbot.WithDefaultHandler(b.handleUpdate),
	}
	api, err := tgbot.New(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	b.api = api
	return b, nil
}

// Start begins long polling. It blocks until ctx is cancelled, matching
// the teacher's Bot.Start.
func (b *Bot) Start(ctx context.Context) {
	log.Println("telegram: starting bot")
	b.api.Start(ctx)
}

// Inbound returns the channel of normalized messages the Session
// Controller should range over.
func (b *Bot) Inbound() <-chan transport.InboundMessage {
	return b.inbound
}

// handleUpdate is the bot library's single default handler; it
// dispatches on message vs callback the way the teacher's handleUpdate
// does, minus the callback-button surface this bridge doesn't use.
func (b *Bot) handleUpdate(ctx context.Context, api *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *models.Message) {
	if msg.From == nil {
		return
	}
	if len(b.allowedUserIDs) > 0 && !b.allowedUserIDs[msg.From.ID] {
		log.Printf("telegram: rejected message from unauthorized user %d", msg.From.ID)
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	in := transport.InboundMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		MessageID: strconv.Itoa(msg.ID),
		Text:      msg.Text,
	}
	if att, ok := extractAttachment(msg); ok {
		in.Attachments = append(in.Attachments, att)
	}
	if msg.ForwardOrigin != nil {
		in.Forward = &transport.Forward{}
	}

	select {
	case b.inbound <- in:
	default:
		log.Printf("telegram: inbound buffer full, dropping message from chat %s", chatID)
	}
}

// extractAttachment maps the one attachment Telegram allows per message
// onto the bridge's normalized Attachment shape (spec §6).
func extractAttachment(msg *models.Message) (transport.Attachment, bool) {
	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return transport.Attachment{Type: transport.AttachmentPhoto, FileID: largest.FileID}, true
	case msg.Document != nil:
		return transport.Attachment{Type: transport.AttachmentDocument, FileID: msg.Document.FileID}, true
	case msg.Audio != nil:
		return transport.Attachment{Type: transport.AttachmentAudio, FileID: msg.Audio.FileID}, true
	case msg.Voice != nil:
		return transport.Attachment{Type: transport.AttachmentVoice, FileID: msg.Voice.FileID}, true
	default:
		return transport.Attachment{}, false
	}
}

// Send implements transport.OutboundSink, escaping text to MarkdownV2
// (spec §8 R2) the way the teacher's SendMessage escapes to Telegram
// HTML before calling bot.SendMessage.
func (b *Bot) Send(ctx context.Context, chatID, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = b.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    id,
		Text:      chatmd.ToTelegramMarkdown(text),
		ParseMode: models.ParseModeMarkdown, // library constant value is "MarkdownV2"
	})
	return err
}

// SendFile implements transport.OutboundSink by uploading path as a
// document, grounded on the teacher's SendPhoto (os.Open + InputFileUpload).
func (b *Bot) SendFile(ctx context.Context, chatID, path, caption string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telegram: open attachment: %w", err)
	}
	defer f.Close()

	_, err = b.api.SendDocument(ctx, &tgbot.SendDocumentParams{
		ChatID:   id,
		Document: &models.InputFileUpload{Filename: filepath.Base(path), Data: f},
		Caption:  chatmd.ToTelegramMarkdown(caption),
	})
	return err
}

// Typing implements transport.OutboundSink, grounded on the teacher's
// SendTyping (bot.SendChatAction with ActionTyping).
func (b *Bot) Typing(ctx context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = b.api.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: id,
		Action: models.ChatActionTyping,
	})
	return err
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}
