package httpserver

const (
	ErrInvalidJSON = "invalid json"
	ErrNotFound    = "not found"
	ErrDependency  = "dependency error"
)
