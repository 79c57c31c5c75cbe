package push

import (
	"context"
	"fmt"
	"strings"

	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/model"
)

// Notifier delivers one rendered message to a chat destination.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string) error

func (f NotifierFunc) Notify(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Limited waits on the limiter before every send.
type Limited struct {
	Next Notifier
	Rate *RateLimiter
}

func (l Limited) Notify(ctx context.Context, message string) error {
	if err := l.Rate.Wait(ctx); err != nil {
		return err
	}
	return l.Next.Notify(ctx, message)
}

// NewNotifier builds the provider named in cfg.Notify.Provider. token is the
// resolved Slack bot token.
func NewNotifier(cfg config.Config, token string) (Notifier, error) {
	var n Notifier
	switch strings.ToLower(cfg.Notify.Provider) {
	case "slack":
		n = NewSlack(token, cfg.Slack.ChannelID, cfg.Slack.APIURL)
	case "dingding":
		n = NewDingTalk(cfg.Dingding)
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Notify.Provider)
	}
	if cfg.Notify.MaxPerMinute > 0 {
		n = Limited{Next: n, Rate: NewRateLimiter(cfg.Notify.MaxPerMinute)}
	}
	return n, nil
}

func RenderTemplate(tpl string, values map[string]string) string {
	res := tpl
	for k, v := range values {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}

// Render fills a notification template for one new leak.
func Render(tpl string, n model.Notification) string {
	if tpl == "" {
		tpl = config.DefaultTemplate
	}
	return RenderTemplate(tpl, map[string]string{
		"email":   n.Email,
		"content": n.Record.Content,
		"added":   n.Record.AddedAt,
	})
}
