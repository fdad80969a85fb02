package transport

import (
	"context"

	"github.com/atlas-cortex/cortex/internal/logging"
)

// Router fans inbound messages from every enabled Channel into the pipeline
// driver and forwards each reply back to the channel it arrived from. It
// mirrors the teacher gateway's one-loop-per-channel dispatch, just against a
// single shared Driver instead of a per-channel agent loop.
type Router struct {
	channels []Channel
	driver   Driver
	log      *logging.Logger
}

// NewRouter builds a Router over the given channels. Disabled channels (no
// token configured) are skipped by Start rather than rejected here, so the
// caller can pass every constructed adapter unconditionally.
func NewRouter(driver Driver, log *logging.Logger, channels ...Channel) *Router {
	return &Router{channels: channels, driver: driver, log: log}
}

// Start launches every enabled channel and its forwarding loop. It returns
// immediately; each channel and its loop run until ctx is cancelled.
func (r *Router) Start(ctx context.Context) {
	for _, ch := range r.channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Start(ctx); err != nil {
			r.log.Warn("transport %s failed to start: %v", ch.Name(), err)
			continue
		}
		r.log.Info("transport %s started", ch.Name())
		go r.forward(ctx, ch)
	}
}

func (r *Router) forward(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Incoming():
			if !ok {
				return
			}
			res, err := r.driver.Process(ctx, ch.Name()+":"+msg.UserID, "", msg.Content)
			if err != nil {
				r.log.Error("transport %s pipeline error: %v", ch.Name(), err)
				continue
			}
			if err := ch.SendMessage(msg.UserID, res.Text); err != nil {
				r.log.Error("transport %s send failed: %v", ch.Name(), err)
			}
		}
	}
}

// Stop shuts down every channel.
func (r *Router) Stop() {
	for _, ch := range r.channels {
		if ch.IsEnabled() {
			_ = ch.Stop()
		}
	}
}
