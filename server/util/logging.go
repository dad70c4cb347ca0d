package util

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// Logger is a minimal interface allowing substitution (e.g., zap, logrus).
type Logger interface {
	Printf(format string, v ...any)
}

// RequestLogger holds request-scoped context to enrich logs.
type RequestLogger struct {
	logger  Logger
	method  string
	path    string
	user    string
	session string
}

// WithRequest creates a request-scoped logger wrapping the provided logger.
func WithRequest(l Logger, r *http.Request, user string) *RequestLogger {
	return &RequestLogger{
		logger: l,
		method: r.Method,
		path:   r.URL.Path,
		user:   user,
	}
}

// WithSession returns a copy of rl that also tags messages with an upload session id.
func (rl *RequestLogger) WithSession(id string) *RequestLogger {
	cp := *rl
	cp.session = id
	return &cp
}

// ContextWithLogger stores the request logger in context for downstream handlers.
func ContextWithLogger(ctx context.Context, rl *RequestLogger) context.Context {
	return context.WithValue(ctx, loggerKey, rl)
}

func (rl *RequestLogger) logf(level string, message string) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s method=%s path=%s", level, rl.method, rl.path)
	if rl.user != "" {
		fmt.Fprintf(&b, " user=%s", rl.user)
	}
	if rl.session != "" {
		fmt.Fprintf(&b, " session=%s", rl.session)
	}
	rl.logger.Printf("%s: %s", b.String(), message)
}

func (rl *RequestLogger) Printf(format string, v ...any) { rl.logf("INFO", fmt.Sprintf(format, v...)) }
func (rl *RequestLogger) Infof(format string, v ...any)  { rl.logf("INFO", fmt.Sprintf(format, v...)) }
func (rl *RequestLogger) Errorf(format string, v ...any) { rl.logf("ERROR", fmt.Sprintf(format, v...)) }

// FromContext retrieves a request logger from context when available.
func FromContext(ctx context.Context) *RequestLogger {
	if ctx == nil {
		return nil
	}

	if rl, ok := ctx.Value(loggerKey).(*RequestLogger); ok {
		return rl
	}

	return nil
}
