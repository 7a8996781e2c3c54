package wechatauth

import "context"

// Client exchanges a mini-program login code for the user's openid.
type Client interface {
	CodeToSession(ctx context.Context, code string) (string, error)
}
