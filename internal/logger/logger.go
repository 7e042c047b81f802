package logger

import (
	"strings"

	"go.uber.org/zap"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, keysAndValues...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

// Security event names. Handlers and pipeline stages log these with
// counts and identifiers only; raw user content never goes through here.
const (
	EventRateLimited        = "api.rate_limited"
	EventInputSanitized     = "input.sanitized"
	EventValidationFailed   = "input.validation_failed"
	EventAIRequest          = "ai.request"
	EventAIResponse         = "ai.response"
	EventAIError            = "ai.error"
	EventUploadStarted      = "file.upload_started"
	EventFileRejected       = "file.validation_failed"
	EventExtractionFailed   = "file.extraction_failed"
	EventExtractionComplete = "file.extraction_complete"
	EventAPIAccess          = "api.access"
	EventAPIError           = "api.error"
	EventQuizCreated        = "quiz.created"
	EventQuizDeleted        = "quiz.deleted"
	EventAuthLogin          = "auth.login"
	EventAuthLogout         = "auth.logout"
)

// Security records an audit event. Events always land at info level so the
// audit trail survives production log filtering.
func (l *Logger) Security(event string, keysAndValues ...interface{}) {
	kv := append([]interface{}{"security_event", event}, keysAndValues...)
	l.SugaredLogger.Infow(event, kv...)
}
