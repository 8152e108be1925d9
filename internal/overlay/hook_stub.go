//go:build !windows

package overlay

// Stub implementation for non-Windows platforms

func newNative(opts Options) (Capability, error) {
	return nil, ErrUnsupported
}
