//go:build !darwin

package input

// Trusted reports whether the process may synthesize input. Only macOS gates
// injection behind a user grant.
func Trusted() bool {
	return true
}
