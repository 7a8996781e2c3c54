package wechatpush

import "context"

// Message is one templated push to a bound WeChat account.
type Message struct {
	OpenID   string
	Template string
	Title    string
	Body     string
	Data     map[string]string
}

// Client delivers template messages through the WeChat service account API.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
