package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"redditcord/internal/cooldown"
	logx "redditcord/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (resp *Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("panic recovered",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					resp, err = nil, fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			d := time.Since(start)

			switch {
			case err == nil:
				req.Logger.Info("request ok", logx.Duration("dur", d))
			case isRejection(err):
				req.Logger.Debug("request rejected", logx.Duration("dur", d), logx.String("reason", err.Error()))
			default:
				req.Logger.Error("request failed", logx.Duration("dur", d), logx.Err(err))
			}
			return resp, err
		}
	}
}

// MWAdminOnly rejects members without administrator capability before any
// other gate runs, so a rejected call does not consume the cooldown.
func MWAdminOnly() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if req.Message == nil || !req.Message.IsAdmin {
				return nil, ErrPermissionDenied
			}
			return next(ctx, req)
		}
	}
}

// MWCooldown enforces the per-user command window.
func MWCooldown(reg *cooldown.Registry) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if reg != nil && req.Message != nil {
				if remaining, ok := reg.Acquire(req.Message.AuthorID); !ok {
					return nil, &CooldownError{Remaining: remaining}
				}
			}
			return next(ctx, req)
		}
	}
}
