package transport

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	logx "remindd/pkg/logx"
)

// ConsoleSink writes notifications to the log.
type ConsoleSink struct {
	log logx.Logger
}

func NewConsoleSink(log logx.Logger) *ConsoleSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ConsoleSink{log: log}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(ctx context.Context, n Notification) error {
	_ = ctx
	c.log.Info(n.Heading,
		logx.String("reminder", n.ReminderID),
		logx.String("title", n.Title),
		logx.String("body", n.Body),
	)
	return nil
}

// DesktopSink pops a desktop notification by running an external command
// as `<command> <heading> <text>`. The default command is notify-send.
type DesktopSink struct {
	command string
	args    []string
}

func NewDesktopSink(command string) *DesktopSink {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{"notify-send"}
	}
	return &DesktopSink{command: fields[0], args: fields[1:]}
}

func (d *DesktopSink) Name() string { return "desktop" }

func (d *DesktopSink) Send(ctx context.Context, n Notification) error {
	if d.command == "" {
		return errors.New("desktop command is empty")
	}
	heading := n.Heading
	if heading == "" {
		heading = n.Title
	}
	text := n.Title
	if n.Body != "" {
		text += "\n" + n.Body
	}
	args := append(append([]string{}, d.args...), heading, text)
	out, err := exec.CommandContext(ctx, d.command, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", d.command, err, msg)
		}
		return fmt.Errorf("%s: %w", d.command, err)
	}
	return nil
}
