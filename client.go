package goCampus

import (
	"context"
	"sync/atomic"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/session"
	"github.com/MrEthical07/goCampus/storage"
	"go.uber.org/zap"
)

// Client is one signed-in (or signed-out) campus user: a session store, the request
// gateway that reads its token, and the observers attached to both.
//
// Client methods are safe for concurrent use. Create one with [Builder.Build] and
// release it with [Client.Close].
type Client struct {
	id      string
	config  Config
	logger  *zap.Logger
	api     *api.API
	store   *session.Store
	metrics *Metrics
	audit   *auditDispatcher
	closers []storage.Closer
	closed  atomic.Bool
}

// Login authenticates with the backend and replaces the session on success.
//
// Login never returns an error: a rejected or failed login is described by the
// [session.Result] message.
func (c *Client) Login(ctx context.Context, cred session.Credentials) session.Result {
	if c.closed.Load() {
		return session.Result{Message: ErrClientClosed.Error(), Err: ErrClientClosed}
	}
	return c.store.Login(ctx, cred)
}

// Logout clears the session in memory and in storage. It always succeeds.
func (c *Client) Logout(ctx context.Context) session.Result {
	return c.store.Logout(ctx)
}

// CheckLogin restores a persisted session and reports whether one was found.
func (c *Client) CheckLogin(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}
	return c.store.CheckLogin(ctx)
}

// UpdateUserInfo merges p into the local user record and persists it when signed in.
// It does not call the backend; see [Client.UpdateProfile].
func (c *Client) UpdateUserInfo(ctx context.Context, p session.Partial) session.Result {
	return c.store.UpdateUserInfo(ctx, p)
}

// RefreshUserInfo fetches the current user from the backend and merges it into the
// session.
func (c *Client) RefreshUserInfo(ctx context.Context) session.Result {
	if !c.store.IsLogin() {
		return failed(ErrNotLoggedIn)
	}
	profile, err := c.api.GetUserInfo(ctx)
	if err != nil {
		return failed(err)
	}
	return c.store.UpdateUserInfo(ctx, session.Partial{
		ID:       nonEmpty(profile.ID.String()),
		Name:     nonEmpty(profile.DisplayName()),
		Username: nonEmpty(profile.Username),
		Phone:    nonEmpty(profile.Phone),
		Avatar:   nonEmpty(profile.Avatar),
		UserType: nonZeroType(profile.UserType),
	})
}

// UpdateProfile sends the editable profile fields to the backend and, once it
// accepts them, mirrors them into the session.
func (c *Client) UpdateProfile(ctx context.Context, update api.ProfileUpdate) session.Result {
	if !c.store.IsLogin() {
		return failed(ErrNotLoggedIn)
	}
	if _, err := c.api.UpdateUserInfo(ctx, update); err != nil {
		return failed(err)
	}
	return c.store.UpdateUserInfo(ctx, session.Partial{
		Name:   update.Nickname,
		Phone:  update.Phone,
		Avatar: update.Avatar,
	})
}

// UploadAvatar uploads the image at filePath as the signed-in user's avatar and
// stores the returned URL in the session.
func (c *Client) UploadAvatar(ctx context.Context, filePath string) session.Result {
	state := c.store.Snapshot()
	if !state.IsLogin {
		return failed(ErrNotLoggedIn)
	}
	res, err := c.api.UploadAvatar(ctx, filePath, state.UserInfo.ID)
	if err != nil {
		return failed(err)
	}
	return c.store.UpdateUserInfo(ctx, session.Partial{Avatar: nonEmpty(res.Location())})
}

// ID identifies this client in audit events.
func (c *Client) ID() string {
	return c.id
}

// State returns a copy of the current session.
func (c *Client) State() session.State {
	return c.store.Snapshot()
}

// API returns the typed endpoint bindings. Calls carry the session token.
func (c *Client) API() *api.API {
	return c.api
}

// Gateway returns the raw request gateway for endpoints without a binding.
func (c *Client) Gateway() *api.Gateway {
	return c.api.Gateway()
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// Metrics returns the live counters, for exporters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the current counters and histograms.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes pending audit events and closes storage connections the builder
// opened. It is safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.audit.Close()
	return closeAll(c.closers)
}

func failed(err error) session.Result {
	return session.Result{Message: err.Error(), Err: err}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonZeroType(t api.UserType) *api.UserType {
	if t == 0 {
		return nil
	}
	return &t
}

// sessionObserver turns session events into counters and audit records.
type sessionObserver struct {
	metrics *Metrics
	audit   *auditDispatcher
}

func (o *sessionObserver) SessionEvent(e session.Event) {
	var (
		metric    MetricID
		eventType string
	)
	switch e.Kind {
	case session.EventLogin:
		metric, eventType = MetricLoginFailure, AuditEventLogin
		if e.Success {
			metric = MetricLoginSuccess
		}
	case session.EventLogout:
		metric, eventType = MetricLogout, AuditEventLogout
	case session.EventCheckLogin:
		metric, eventType = MetricSessionMissing, AuditEventSessionRestore
		if e.Success {
			metric = MetricSessionRestored
		}
	case session.EventUpdateUserInfo:
		metric, eventType = MetricUserInfoUpdated, AuditEventUserInfoUpdate
	case session.EventStorageFailure:
		metric, eventType = MetricStorageFailure, AuditEventStorageFailure
	default:
		return
	}
	o.metrics.Inc(metric)

	if o.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		UserID:    e.UserID,
		Success:   e.Success,
	}
	if e.Err != nil {
		event.Error = e.Err.Error()
		if apiErr, ok := api.AsError(e.Err); ok {
			event.Metadata = map[string]string{"kind": apiErr.Kind.String()}
		}
	}
	o.audit.Emit(context.Background(), event)
}
