package transport

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAdapter bridges a Telegram bot to the Router, grounded on the
// teacher gateway's telegram channel: long-polled updates fed into the same
// buffered incoming queue shape as every other adapter.
type TelegramAdapter struct {
	bot      *tgbotapi.BotAPI
	token    string
	incoming chan *Message
}

// NewTelegramAdapter builds a TelegramAdapter. An empty token disables it.
func NewTelegramAdapter(token string) *TelegramAdapter {
	return &TelegramAdapter{token: token, incoming: make(chan *Message, 100)}
}

func (t *TelegramAdapter) Name() string              { return "telegram" }
func (t *TelegramAdapter) IsEnabled() bool           { return t.token != "" }
func (t *TelegramAdapter) Incoming() <-chan *Message { return t.incoming }

func (t *TelegramAdapter) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return err
	}
	t.bot = bot

	update := tgbotapi.NewUpdate(0)
	update.Timeout = 60
	updates := t.bot.GetUpdatesChan(update)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if u.Message == nil {
					continue
				}
				msg := &Message{
					ID:      strconv.Itoa(u.Message.MessageID),
					Channel: "telegram",
					UserID:  strconv.FormatInt(u.Message.Chat.ID, 10),
					Content: u.Message.Text,
				}
				select {
				case t.incoming <- msg:
				default:
				}
			}
		}
	}()
	return nil
}

func (t *TelegramAdapter) Stop() error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

func (t *TelegramAdapter) SendMessage(userID, content string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return err
	}
	reply := tgbotapi.NewMessage(chatID, content)
	_, err = t.bot.Send(reply)
	return err
}
