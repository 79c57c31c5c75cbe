package push

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/foreseon/IntelXScan/internal/model"
)

// Slack posts each message to one channel with chat.postMessage.
type Slack struct {
	client    *slack.Client
	channelID string
}

// NewSlack builds a Slack notifier. apiURL overrides the Web API base and is
// only needed for tests or proxies.
func NewSlack(token, channelID, apiURL string) *Slack {
	var opts []slack.Option
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Slack{client: slack.New(token, opts...), channelID: channelID}
}

func (s *Slack) Notify(ctx context.Context, message string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("%w: slack: %v", model.ErrNotificationFailed, err)
	}
	return nil
}
