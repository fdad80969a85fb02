package transport

import (
	"context"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackAdapter bridges a Slack app (Socket Mode) to the Router, grounded on
// the teacher's pinky Slack adapter but trimmed to plain message in/out —
// the household assistant has no tool-approval workflow to surface as
// interactive Block Kit buttons.
type SlackAdapter struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	incoming chan *Message
}

// NewSlackAdapter builds a SlackAdapter. Both tokens must be non-empty
// (Socket Mode requires an app-level token alongside the bot token) for it
// to be enabled.
func NewSlackAdapter(botToken, appToken string) *SlackAdapter {
	return &SlackAdapter{botToken: botToken, appToken: appToken, incoming: make(chan *Message, 100)}
}

func (s *SlackAdapter) Name() string              { return "slack" }
func (s *SlackAdapter) IsEnabled() bool           { return s.botToken != "" && s.appToken != "" }
func (s *SlackAdapter) Incoming() <-chan *Message { return s.incoming }

func (s *SlackAdapter) Start(ctx context.Context) error {
	s.client = slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	s.socket = socketmode.New(s.client)

	go s.handleEvents(ctx)
	go func() {
		_ = s.socket.Run()
	}()
	return nil
}

func (s *SlackAdapter) Stop() error {
	close(s.incoming)
	return nil
}

func (s *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			s.socket.Ack(*evt.Request)
			s.handleCallback(apiEvent)
		}
	}
}

func (s *SlackAdapter) handleCallback(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || ev.BotID != "" || ev.SubType != "" {
		return
	}
	msg := &Message{
		ID:      ev.TimeStamp,
		Channel: "slack",
		UserID:  ev.User,
		Content: ev.Text,
		Metadata: map[string]string{
			"channel_id": ev.Channel,
		},
	}
	select {
	case s.incoming <- msg:
	default:
	}
}

func (s *SlackAdapter) SendMessage(userID, content string) error {
	_, _, err := s.client.PostMessage(userID, slack.MsgOptionText(content, false))
	return err
}
