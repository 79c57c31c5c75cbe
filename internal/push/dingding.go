package push

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/model"
)

type DingTalk struct {
	Webhook string
	Secret  string
	MsgType string
	Title   string
	Timeout time.Duration

	now func() time.Time
}

type Response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewDingTalk(cfg config.DingdingConfig) *DingTalk {
	return &DingTalk{
		Webhook: cfg.Webhook,
		Secret:  cfg.Secret,
		MsgType: cfg.MsgType,
		Title:   cfg.Title,
		Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

func (d *DingTalk) Notify(ctx context.Context, message string) error {
	if strings.ToLower(d.MsgType) == "markdown" {
		return d.SendMarkdown(ctx, message)
	}
	return d.SendText(ctx, message)
}

func (d *DingTalk) SendMarkdown(ctx context.Context, content string) error {
	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": d.Title,
			"text":  content,
		},
	}
	return d.send(ctx, payload)
}

func (d *DingTalk) SendText(ctx context.Context, content string) error {
	payload := map[string]any{
		"msgtype": "text",
		"text": map[string]string{
			"content": content,
		},
	}
	return d.send(ctx, payload)
}

func (d *DingTalk) send(ctx context.Context, payload map[string]any) error {
	endpoint, err := d.endpoint()
	if err != nil {
		return fmt.Errorf("%w: dingding: %v", model.ErrNotificationFailed, err)
	}
	buf, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%w: dingding: %v", model.ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: d.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: dingding: %v", model.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: dingding status %d", model.ErrNotificationFailed, resp.StatusCode)
	}
	var r Response
	_ = json.NewDecoder(resp.Body).Decode(&r)
	if r.ErrCode != 0 {
		return fmt.Errorf("%w: dingding error %d: %s", model.ErrNotificationFailed, r.ErrCode, r.ErrMsg)
	}
	return nil
}

// endpoint appends timestamp and sign when a secret is configured.
func (d *DingTalk) endpoint() (string, error) {
	u, err := url.Parse(d.Webhook)
	if err != nil {
		return "", err
	}
	if d.Secret == "" {
		return u.String(), nil
	}
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	ts := fmt.Sprintf("%d", now().UnixMilli())
	q := u.Query()
	q.Set("timestamp", ts)
	q.Set("sign", sign(ts, d.Secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sign(timestamp, secret string) string {
	stringToSign := fmt.Sprintf("%s\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
