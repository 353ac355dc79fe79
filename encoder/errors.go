package encoder

import "fmt"

// A ConfigError is returned when an encoder cannot be
// built from a configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("invalid encoder config: %s: %s", c.Field, c.Reason)
}

// A ShapeError is returned when an input batch does not
// match the encoder or its own dimensions.
type ShapeError struct {
	Reason string
}

func (s *ShapeError) Error() string {
	return "bad input shape: " + s.Reason
}

func shapeErrorf(format string, args ...interface{}) *ShapeError {
	return &ShapeError{Reason: fmt.Sprintf(format, args...)}
}
