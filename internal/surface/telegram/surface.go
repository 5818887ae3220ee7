// Package telegram renders heads-up entries as Telegram messages. Present
// sends, UpdateContent edits in place, Dismiss deletes; animation hooks are
// immediate since chat messages have no transition.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"hund/internal/headsup"
	"hund/internal/notif"
	logx "hund/pkg/logx"
)

type Config struct {
	Token       string
	ChatID      int64
	PollTimeout time.Duration // 0 means default (10s)
}

type Surface struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot

	// onDismiss receives the notification key when the user taps the
	// dismiss button. Stored atomically because telebot handlers run on
	// the poll goroutine.
	onDismiss atomic.Value // func(key string)

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Surface, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Surface{cfg: cfg, log: log, bot: b}
	var nilFn func(string)
	s.onDismiss.Store(nilFn)
	s.registerHandlers()
	return s, nil
}

// SetDismissHandler installs the callback invoked when the user taps the
// dismiss button under a heads-up message.
func (s *Surface) SetDismissHandler(fn func(key string)) {
	s.onDismiss.Store(fn)
}

func (s *Surface) registerHandlers() {
	s.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key := strings.TrimPrefix(strings.TrimSpace(cb.Data), "dismiss|")
		if key == "" {
			return c.Respond()
		}
		if fn, _ := s.onDismiss.Load().(func(string)); fn != nil {
			fn(key)
		}
		return c.Respond(&tele.CallbackResponse{Text: "dismissed"})
	})
}

// Start runs the long-poll loop until ctx is cancelled. Incoming callbacks
// (dismiss taps) are delivered on the poll goroutine.
func (s *Surface) Start(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil
	}
	s.running = true
	s.runMu.Unlock()

	go func() {
		<-ctx.Done()
		s.bot.Stop()
	}()
	s.log.Info("polling started")
	s.bot.Start()
	s.log.Info("polling stopped")
	return nil
}

func (s *Surface) Stop(ctx context.Context) error {
	_ = ctx
	s.runMu.Lock()
	wasRunning := s.running
	s.running = false
	s.runMu.Unlock()
	if !wasRunning {
		return nil
	}
	// telebot Stop is expected to be fast; run it async just in case.
	go s.bot.Stop()
	return nil
}

func (s *Surface) Present(key string, tpl headsup.Template, it *notif.Item) (headsup.ViewHandle, error) {
	chat := &tele.Chat{ID: s.cfg.ChatID}

	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	// Swipe-exempt entries (ongoing full-screen calls) get no dismiss button.
	if headsup.Dismissible(it) {
		markup := &tele.ReplyMarkup{}
		btn := markup.Data("Dismiss", "hu", "dismiss|"+key)
		markup.Inline(markup.Row(btn))
		opts.ReplyMarkup = markup
	}

	msg, err := s.bot.Send(chat, render(tpl, it), opts)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Surface) UpdateContent(h headsup.ViewHandle, it *notif.Item) error {
	msg, ok := h.(*tele.Message)
	if !ok || msg == nil {
		return errors.New("not a telegram handle")
	}
	_, err := s.bot.Edit(msg, render(TemplateOf(it), it), &tele.SendOptions{ParseMode: tele.ModeHTML})
	// Telegram rejects edits with identical content; that's not a failure.
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (s *Surface) AnimateIn(h headsup.ViewHandle) {}

func (s *Surface) AnimateOut(h headsup.ViewHandle, onComplete func()) {
	if onComplete != nil {
		onComplete()
	}
}

func (s *Surface) Dismiss(h headsup.ViewHandle) {
	msg, ok := h.(*tele.Message)
	if !ok || msg == nil {
		return
	}
	if err := s.bot.Delete(msg); err != nil {
		s.log.Debug("delete failed", logx.Int("message_id", msg.ID), logx.Err(err))
	}
}

// TemplateOf re-derives the template for updates, where only the item is at
// hand.
func TemplateOf(it *notif.Item) headsup.Template {
	return headsup.TemplateFor(it)
}

var templateBadges = map[headsup.Template]string{
	headsup.TemplateEmergency:   "🚨",
	headsup.TemplateWarning:     "⚠️",
	headsup.TemplateInformation: "ℹ️",
	headsup.TemplateMessage:     "💬",
	headsup.TemplateInbox:       "📥",
}

func render(tpl headsup.Template, it *notif.Item) string {
	var b strings.Builder
	if badge, ok := templateBadges[tpl]; ok {
		b.WriteString(badge)
		b.WriteString(" ")
	}
	title := it.Title
	if title == "" {
		title = it.PackageName
	}
	fmt.Fprintf(&b, "<b>%s</b>", escapeHTML(title))
	if it.Body != "" {
		b.WriteString("\n")
		b.WriteString(escapeHTML(it.Body))
	}
	if tpl == headsup.TemplateInbox && it.SummaryText != "" {
		b.WriteString("\n<i>")
		b.WriteString(escapeHTML(it.SummaryText))
		b.WriteString("</i>")
	}
	return b.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
