package core

// Logger is implemented by the application loggers.
// args may hold errors, extra data maps and the acting user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson identifies the acting user in error reports.
type LogPerson struct {
	ID       string
	Username string
	Email    string
}
