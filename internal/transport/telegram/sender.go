package telegram

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

type Config struct {
	Token       string
	ChatID      int64
	ThreadID    int
	PollTimeout time.Duration
}

// Sender delivers notifications to one Telegram chat.
type Sender struct {
	cfg Config
	log logx.Logger
	bot botAPI
}

// botAPI is the part of *tele.Bot the sender uses.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
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
	return &Sender{cfg: cfg, log: log, bot: b}, nil
}

func (s *Sender) Name() string { return "telegram" }

func (s *Sender) Target() kit.ChatTarget {
	return kit.ChatTarget{ChatID: s.cfg.ChatID, ThreadID: s.cfg.ThreadID}
}

func (s *Sender) Send(ctx context.Context, n kit.Notification) error {
	to := s.Target()
	chat := &tele.Chat{ID: to.ChatID}
	for _, chunk := range splitTelegramText(formatHTML(n), telegramTextLimit, tele.ModeHTML) {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if _, err := s.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
			ThreadID:              to.ThreadID,
		}); err != nil {
			return err
		}
	}
	s.log.Debug("telegram notification sent", logx.String("reminder", n.ReminderID), logx.Int64("chat_id", to.ChatID))
	return nil
}

func formatHTML(n kit.Notification) string {
	var b strings.Builder
	if n.Heading != "" {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(n.Heading))
		b.WriteString("</b>\n")
	}
	b.WriteString(html.EscapeString(n.Title))
	if n.Body != "" {
		b.WriteString("\n<i>")
		b.WriteString(html.EscapeString(n.Body))
		b.WriteString("</i>")
	}
	return b.String()
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode tele.ParseMode) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer splitting on a newline near the end of the window.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		// Don't split inside a tag.
		if parseMode == tele.ModeHTML && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
