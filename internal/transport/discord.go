package transport

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// DiscordAdapter bridges a Discord bot account to the Router, grounded on the
// teacher gateway's discord channel: a buffered incoming queue fed by a
// MessageCreate handler, replying only to DMs and @mentions so the bot
// doesn't answer every message in a shared server channel.
type DiscordAdapter struct {
	token    string
	session  *discordgo.Session
	incoming chan *Message
}

// NewDiscordAdapter builds a DiscordAdapter. An empty token disables it.
func NewDiscordAdapter(token string) *DiscordAdapter {
	return &DiscordAdapter{token: token, incoming: make(chan *Message, 100)}
}

func (d *DiscordAdapter) Name() string              { return "discord" }
func (d *DiscordAdapter) IsEnabled() bool           { return d.token != "" }
func (d *DiscordAdapter) Incoming() <-chan *Message { return d.incoming }

func (d *DiscordAdapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return err
	}
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.Bot {
			return
		}
		if m.GuildID != "" && !mentionsUser(s.State.User.ID, m.Mentions) {
			return
		}
		msg := &Message{
			ID:      m.ID,
			Channel: "discord",
			UserID:  m.Author.ID,
			Content: m.Content,
			Metadata: map[string]string{
				"guild_id":   m.GuildID,
				"channel_id": m.ChannelID,
			},
		}
		select {
		case d.incoming <- msg:
		default:
		}
	})

	if err := session.Open(); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		session.Close()
	}()
	return nil
}

func (d *DiscordAdapter) Stop() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *DiscordAdapter) SendMessage(userID, content string) error {
	ch, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.session.ChannelMessageSend(ch.ID, content)
	return err
}

func mentionsUser(userID string, mentions []*discordgo.User) bool {
	for _, m := range mentions {
		if m.ID == userID {
			return true
		}
	}
	return false
}
