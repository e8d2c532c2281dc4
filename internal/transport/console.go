// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Console is a local-dev/test transport: it reads lines from stdin as
// inbound messages for a fixed chat id and writes outbound sends to
// stdout. Grounded on cmd/trellis/main.go's runInit, which reads
// interactive input the same way (bufio.NewReader(os.Stdin)).
type Console struct {
	chatID string
	reader *bufio.Reader
	out    *bufio.Writer
}

// NewConsole builds a Console transport bound to a single chat id.
func NewConsole(chatID string) *Console {
	return &Console{
		chatID: chatID,
		reader: bufio.NewReader(os.Stdin),
		out:    bufio.NewWriter(os.Stdout),
	}
}

// ReadLine blocks for one line of stdin and wraps it as an InboundMessage.
// Returns false at EOF.
func (c *Console) ReadLine() (InboundMessage, bool) {
	line, err := c.reader.ReadString('\n')
	line = strings.TrimRight(line, "\n")
	if line == "" && err != nil {
		return InboundMessage{}, false
	}
	return InboundMessage{
		ID:     uuid.NewString(),
		ChatID: c.chatID,
		Text:   line,
	}, true
}

// Send implements OutboundSink.
func (c *Console) Send(ctx context.Context, chatID, text string) error {
	fmt.Fprintf(c.out, "[%s] %s\n", chatID, text)
	return c.out.Flush()
}

// SendFile implements OutboundSink.
func (c *Console) SendFile(ctx context.Context, chatID, path, caption string) error {
	fmt.Fprintf(c.out, "[%s] <file: %s> %s\n", chatID, path, caption)
	return c.out.Flush()
}

// Typing implements OutboundSink.
func (c *Console) Typing(ctx context.Context, chatID string) error {
	return nil
}
