// Package notify shows short-lived, fire-and-forget notices to the user.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const DefaultWidth = 60

type Notifier interface {
	Notify(text string)
}

func GroupInvitationText(gid uint64) string {
	return fmt.Sprintf("You were invited to group %d", gid)
}

// Console draws the text as a centered banner.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

func NewConsole(out io.Writer, width int) *Console {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Console{out: out, width: width}
}

func (c *Console) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	border := strings.Repeat("*", c.width)
	_, _ = fmt.Fprintf(c.out, "%s\n%s\n%s\n", border, center(text, c.width), border)
}

func center(text string, width int) string {
	n := len([]rune(text))
	if n >= width {
		return text
	}
	pad := (width - n) / 2
	return strings.Repeat(" ", pad) + text
}

type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(text string) {
	l.logger.Info().Str("notification", text).Msg("Notification")
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(text string) {
	for _, n := range m {
		n.Notify(text)
	}
}
