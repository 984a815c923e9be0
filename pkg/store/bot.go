package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chitchat/chitchat/pkg/domain"
)

const botErrorReply = "Sorry, I encountered an error processing your message. Please try again."

func unconfiguredReply(bot domain.User) string {
	name := bot.Name()
	if name == "" || name == bot.ID {
		name = "your assistant"
	}
	return fmt.Sprintf("Hi! I'm %s. To start chatting with me, please configure me first "+
		"by setting up my API key and model. Once configured, I'll be able to respond to your messages!", name)
}

// scheduleBotReply appends exactly one local reply from bot once the bot
// delay has passed. The reply is dropped if the store is reset meanwhile.
func (r *Rooms) scheduleBotReply(lifecycle context.Context, gen uint64, roomID string, bot domain.User, prompt string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		text := r.botReplyText(lifecycle, bot, prompt)

		if wait := r.opts.BotDelay - time.Since(start); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-lifecycle.Done():
				return
			case <-t.C:
			}
		}

		r.mu.Lock()
		if gen != r.gen || lifecycle.Err() != nil {
			r.mu.Unlock()
			return
		}
		st, ok := r.rooms[roomID]
		if !ok {
			r.mu.Unlock()
			return
		}
		sender := bot
		st.appendEntry(domain.Message{
			ClientID:  r.opts.NewID(),
			RoomID:    roomID,
			SenderID:  bot.ID,
			Sender:    &sender,
			Body:      text,
			Type:      domain.MessageText,
			CreatedAt: r.opts.Now(),
			State:     domain.StateLocal,
		})
		r.mu.Unlock()
		notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: roomID})
	}()
}

func (r *Rooms) botReplyText(ctx context.Context, bot domain.User, prompt string) string {
	if bot.Bot == nil || !bot.Bot.Configured || r.opts.Bots == nil {
		return unconfiguredReply(bot)
	}
	reply, err := r.opts.Bots.GenerateBotResponse(ctx, bot.ID, prompt)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn().Err(err).Str("bot", bot.ID).Msg("bot response failed")
		}
		return botErrorReply
	}
	if strings.TrimSpace(reply) == "" {
		return botErrorReply
	}
	return reply
}
