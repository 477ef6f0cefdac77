package catalog

import "fmt"

// ConfigurationError reports an unknown model key or a missing credential for
// an explicitly requested model. It is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

// CapabilityError reports request parameters that exceed what the chosen
// model supports. The caller must change parameters or switch models.
type CapabilityError struct {
	Model  string
	Reason string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("model %q: %s", e.Model, e.Reason)
}
