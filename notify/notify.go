package notify

import (
	"context"
	"sync"

	"github.com/MrEthical07/goCampus/api"
	"go.uber.org/zap"
)

// Notifier is the UI surface the client drives.
type Notifier interface {
	ShowLoading(title string)
	HideLoading()
	Toast(msg string)
	NavigateTo(route string)
}

// Messages holds user-facing texts and the login route.
type Messages struct {
	Loading          string `yaml:"loading"`
	RequestFailed    string `yaml:"request_failed"`
	LoginRequired    string `yaml:"login_required"`
	NetworkError     string `yaml:"network_error"`
	ConnectionFailed string `yaml:"connection_failed"`
	LoginRoute       string `yaml:"login_route"`
}

// DefaultMessages returns the stock English texts.
func DefaultMessages() Messages {
	return Messages{
		Loading:          "Loading...",
		RequestFailed:    "request failed",
		LoginRequired:    "please log in",
		NetworkError:     "network error",
		ConnectionFailed: "network connection failed",
		LoginRoute:       "/pages/login/login",
	}
}

// withDefaults fills empty fields from [DefaultMessages].
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.Loading == "" {
		m.Loading = d.Loading
	}
	if m.RequestFailed == "" {
		m.RequestFailed = d.RequestFailed
	}
	if m.LoginRequired == "" {
		m.LoginRequired = d.LoginRequired
	}
	if m.NetworkError == "" {
		m.NetworkError = d.NetworkError
	}
	if m.ConnectionFailed == "" {
		m.ConnectionFailed = d.ConnectionFailed
	}
	if m.LoginRoute == "" {
		m.LoginRoute = d.LoginRoute
	}
	return m
}

// Reactor implements api.Loading and api.Reactor over a [Notifier].
type Reactor struct {
	n   Notifier
	msg Messages
}

// NewReactor returns a reactor. Empty message fields fall back to [DefaultMessages].
// A nil notifier behaves like [Nop].
func NewReactor(n Notifier, msg Messages) *Reactor {
	if n == nil {
		n = Nop{}
	}
	return &Reactor{n: n, msg: msg.withDefaults()}
}

// Begin shows the loading indicator.
func (r *Reactor) Begin(context.Context) {
	r.n.ShowLoading(r.msg.Loading)
}

// End hides the loading indicator.
func (r *Reactor) End(context.Context) {
	r.n.HideLoading()
}

// React surfaces a classified failure. A 401 toasts and navigates to the login route
// exactly once per failed call.
func (r *Reactor) React(_ context.Context, err *api.Error) {
	if err == nil {
		return
	}
	switch err.Kind {
	case api.KindBusiness:
		msg := err.Message
		if msg == "" {
			msg = r.msg.RequestFailed
		}
		r.n.Toast(msg)
	case api.KindDecode:
		// The server answered; only its body was unreadable.
		r.n.Toast(r.msg.RequestFailed)
	case api.KindUnauthorized:
		r.n.Toast(r.msg.LoginRequired)
		r.n.NavigateTo(r.msg.LoginRoute)
	case api.KindHTTPStatus:
		r.n.Toast(r.msg.NetworkError)
	case api.KindTransport:
		r.n.Toast(r.msg.ConnectionFailed)
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) ShowLoading(string) {}
func (Nop) HideLoading()       {}
func (Nop) Toast(string)       {}
func (Nop) NavigateTo(string)  {}

// Call is one notification captured by a [Recorder].
type Call struct {
	Op  string
	Arg string
}

// Notification operations recorded by [Recorder].
const (
	OpShowLoading = "show_loading"
	OpHideLoading = "hide_loading"
	OpToast       = "toast"
	OpNavigate    = "navigate"
)

// Recorder keeps every notification in order. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(op, arg string) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Arg: arg})
	r.mu.Unlock()
}

func (r *Recorder) ShowLoading(title string) { r.record(OpShowLoading, title) }
func (r *Recorder) HideLoading()             { r.record(OpHideLoading, "") }
func (r *Recorder) Toast(msg string)         { r.record(OpToast, msg) }
func (r *Recorder) NavigateTo(route string)  { r.record(OpNavigate, route) }

// Calls returns a copy of the recorded notifications.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset drops all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// Logger writes notifications to a zap logger. Loading brackets are logged at debug,
// toasts and navigations at info.
type Logger struct {
	l *zap.Logger
}

// NewLogger returns a notifier backed by l. A nil l discards output.
func NewLogger(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{l: l}
}

func (n *Logger) ShowLoading(title string) { n.l.Debug("loading", zap.String("title", title)) }
func (n *Logger) HideLoading()             { n.l.Debug("loading done") }
func (n *Logger) Toast(msg string)         { n.l.Info("toast", zap.String("message", msg)) }
func (n *Logger) NavigateTo(route string)  { n.l.Info("navigate", zap.String("route", route)) }
