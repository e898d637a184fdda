package core

// Logger logs messages and reports them to an error tracker when enabled.
// args may contain errors, map[string]interface{} extras and the acting core.Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user on whose behalf something was logged.
type Person struct {
	ID    string
	Name  string
	Email string
}
