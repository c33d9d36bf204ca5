package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "httpapi").Logger() }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return LevelOff
	case "error":
		return LevelError
	case "info", "":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel is read once from BATCHD_REQUEST_LOG.
var defaultLogLevel = parseLevel(os.Getenv("BATCHD_REQUEST_LOG"))

// requestLogLevel lets a caller raise or silence logging for one request
// with ?log=<level> or the X-Log-Level header.
func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logInferEnd emits the per-request summary line. Failures are logged at
// LevelError and above, successes at LevelInfo and above.
func logInferEnd(lvl LogLevel, ev inferLog) {
	failed := ev.status >= http.StatusBadRequest
	if lvl == LevelOff || (!failed && lvl < LevelInfo) {
		return
	}
	e := zlog.Info()
	if ev.status >= http.StatusInternalServerError {
		e = zlog.Warn()
	}
	e = e.Int("status", ev.status).
		Dur("dur", ev.dur).
		Str("model", ev.model)
	if ev.requestID != "" {
		e = e.Str("request_id", ev.requestID)
	}
	if ev.batchID != 0 {
		e = e.Uint64("batch_id", ev.batchID).Int("batch_size", ev.batchSize)
	}
	if ev.err != nil {
		e = e.Err(ev.err)
	}
	e.Msg("infer end")
}

// inferLog carries the fields of one "infer end" line.
type inferLog struct {
	status    int
	dur       time.Duration
	model     string
	requestID string
	batchID   uint64
	batchSize int
	err       error
}
