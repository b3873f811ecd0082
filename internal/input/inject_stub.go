//go:build !darwin && !windows && !linux

package input

// Injector is a stub for platforms without keystroke synthesis.
type Injector struct{}

// NewInjector reports that injection is unavailable.
func NewInjector() (*Injector, error) {
	return nil, ErrUnsupported
}

// Backspace is not supported on this platform.
func (i *Injector) Backspace() error {
	return ErrUnsupported
}

// TypeText is not supported on this platform.
func (i *Injector) TypeText(text string) error {
	return ErrUnsupported
}
