package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "remindd/internal/transport"
	logx "remindd/pkg/logx"
)

type fakeBot struct {
	sent []string
	opts []*tele.SendOptions
	err  error
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, what.(string))
	if len(opts) > 0 {
		f.opts = append(f.opts, opts[0].(*tele.SendOptions))
	}
	return &tele.Message{ID: len(f.sent)}, nil
}

func TestSendFormatsAndTargetsThread(t *testing.T) {
	t.Parallel()
	fb := &fakeBot{}
	s := &Sender{cfg: Config{ChatID: 42, ThreadID: 7}, log: logx.Nop(), bot: fb}

	err := s.Send(context.Background(), kit.Notification{Heading: "Reminder", Title: "Pay <rent>", Body: "before 5"})
	if err != nil {
		t.Fatal(err)
	}
	if len(fb.sent) != 1 {
		t.Fatalf("sent %d messages", len(fb.sent))
	}
	want := "<b>Reminder</b>\nPay &lt;rent&gt;\n<i>before 5</i>"
	if fb.sent[0] != want {
		t.Fatalf("text = %q, want %q", fb.sent[0], want)
	}
	if fb.opts[0].ThreadID != 7 || fb.opts[0].ParseMode != tele.ModeHTML {
		t.Fatalf("options = %+v", fb.opts[0])
	}
}

func TestSendPropagatesErrors(t *testing.T) {
	t.Parallel()
	s := &Sender{cfg: Config{ChatID: 1}, log: logx.Nop(), bot: &fakeBot{err: errors.New("429")}}
	if err := s.Send(context.Background(), kit.Notification{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("a", 30) + "\n"
	text := strings.Repeat(line, 10)
	chunks := splitTelegramText(text, 100, tele.ModeDefault)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk too long: %d", len(c))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk has stray newline: %q", c)
		}
	}
	if got := splitTelegramText("short", 100, tele.ModeHTML); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text split: %v", got)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{ChatID: 1}, logx.Nop()); err == nil {
		t.Fatal("empty token must fail")
	}
	if _, err := New(Config{Token: "x"}, logx.Nop()); err == nil {
		t.Fatal("missing chat id must fail")
	}
}
