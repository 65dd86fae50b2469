package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// DiscordChannel implements Channel on one Discord text channel through the
// bot REST API. No gateway connection is opened.
type DiscordChannel struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordSession creates a REST-only bot session.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return s, nil
}

// NewDiscordChannel binds a session to a channel.
func NewDiscordChannel(session *discordgo.Session, channelID string) *DiscordChannel {
	return &DiscordChannel{session: session, channelID: channelID}
}

// Create posts a new message.
func (c *DiscordChannel) Create(ctx context.Context, content string) (string, error) {
	msg, err := c.session.ChannelMessageSend(c.channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// Edit replaces the content of an existing message.
func (c *DiscordChannel) Edit(ctx context.Context, id, content string) error {
	_, err := c.session.ChannelMessageEdit(c.channelID, id, content, discordgo.WithContext(ctx))
	if err != nil {
		return editError(id, err)
	}
	return nil
}

// editError maps a failed edit to ErrNotFound only when Discord confirms the
// message is gone; everything else stays transient.
func editError(id string, err error) error {
	if isUnknownMessage(err) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to edit message %s: %w", id, err)
}

// Delete removes a message.
func (c *DiscordChannel) Delete(ctx context.Context, id string) error {
	err := c.session.ChannelMessageDelete(c.channelID, id, discordgo.WithContext(ctx))
	if err != nil && !isUnknownMessage(err) {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

// ListRecent returns up to limit message identifiers, newest first.
// Discord caps a single page at 100 messages.
func (c *DiscordChannel) ListRecent(ctx context.Context, limit int) ([]string, error) {
	if limit > 100 {
		limit = 100
	}
	msgs, err := c.session.ChannelMessages(c.channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids, nil
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
