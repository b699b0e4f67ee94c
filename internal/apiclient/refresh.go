package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/observability/metrics"
	"github.com/target/clinic-portal/internal/ports"
	"github.com/target/clinic-portal/internal/session"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyToken is returned when the refresh endpoint answers 2xx without an access token.
var ErrEmptyToken = errors.New("refresh response carried no access token")

var _ ports.TokenRefresher = (*Refresher)(nil)

// Refresher exchanges the session's refresh cookie for a new access token.
// With coalescing enabled, concurrent refreshes for the same session ID share
// one upstream call and every caller applies the shared result to its own state.
type Refresher struct {
	client   *Client
	path     string
	coalesce bool
	group    singleflight.Group
}

// RefreshResult is the refresh endpoint's response body.
type RefreshResult struct {
	AccessToken string           `json:"accessToken"`
	User        *domainauth.User `json:"user,omitempty"`

	cookie string
}

func newRefresher(c *Client, path string, coalesce bool) *Refresher {
	return &Refresher{client: c, path: path, coalesce: coalesce}
}

// Refresh runs the refresh routine on behalf of the route guard.
func (r *Refresher) Refresh(ctx context.Context, sess ports.SessionState) error {
	return r.refresh(ctx, sess, metrics.TriggerGuard)
}

// refresh updates sess in place on success. On failure sess is cleared and the
// returned error wraps ErrLoginRequired.
func (r *Refresher) refresh(ctx context.Context, sess ports.SessionState, trigger string) error {
	start := time.Now()
	logger := r.client.logger.With("trigger", trigger)

	res, err := r.fetch(ctx, sess)
	if err != nil && ctx.Err() != nil {
		// The caller went away; that says nothing about the refresh credential.
		return ctx.Err()
	}
	if err != nil {
		sess.Clear()
		metrics.EmitRefresh(r.client.metrics, metrics.RefreshMetric{
			Trigger: trigger, Result: metrics.ResultError, Duration: time.Since(start), Err: err,
		})
		logger.InfoContext(ctx, "silent refresh failed", "error", err)
		return fmt.Errorf("%w: %w", ErrLoginRequired, err)
	}

	if tokenErr := sess.SetAccessToken(res.AccessToken); tokenErr != nil {
		if !errors.Is(tokenErr, session.ErrMalformedToken) {
			return tokenErr
		}
		logger.DebugContext(ctx, "refreshed token has no readable expiry", "error", tokenErr)
	}
	if res.User != nil {
		sess.SetUser(*res.User)
	}
	if res.cookie != "" {
		sess.SetRefreshCookie(res.cookie)
	}

	metrics.EmitRefresh(r.client.metrics, metrics.RefreshMetric{
		Trigger: trigger, Result: metrics.ResultSuccess, Duration: time.Since(start),
	})
	return nil
}

func (r *Refresher) fetch(ctx context.Context, sess ports.SessionState) (RefreshResult, error) {
	if !r.coalesce || sess.ID() == "" {
		return r.call(ctx, sess.RefreshCookie())
	}

	cookie := sess.RefreshCookie()
	ch := r.group.DoChan(sess.ID(), func() (any, error) {
		// Detached from the first caller's cancellation so one navigation away
		// does not fail every waiter.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout())
		defer cancel()
		return r.call(callCtx, cookie)
	})
	select {
	case <-ctx.Done():
		return RefreshResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return RefreshResult{}, res.Err
		}
		out, _ := res.Val.(RefreshResult)
		return out, nil
	}
}

func (r *Refresher) timeout() time.Duration {
	if t := r.client.http.Timeout; t > 0 {
		return t
	}
	return defaultTimeout
}

// call performs the refresh request against a throwaway credential holder so
// concurrent callers never share mutable state.
func (r *Refresher) call(ctx context.Context, cookie string) (RefreshResult, error) {
	holder := session.New("")
	holder.SetRefreshCookie(cookie)

	resp, err := r.client.Do(ctx, holder, Request{Method: http.MethodGet, Path: r.path, Anonymous: true})
	if err != nil {
		return RefreshResult{}, err
	}

	var res RefreshResult
	if decodeErr := resp.Decode(&res); decodeErr != nil {
		return RefreshResult{}, decodeErr
	}
	res.AccessToken = strings.TrimSpace(res.AccessToken)
	if res.AccessToken == "" {
		return RefreshResult{}, ErrEmptyToken
	}
	if updated := holder.RefreshCookie(); updated != cookie {
		res.cookie = updated
	}
	return res, nil
}
