package core

// Logger is the app-wide logger.
// args may be any of: error, map[string]interface{} (fields), user.User (attached as the person).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
