//go:build !windows && !darwin

package tray

type noNative struct{}

func newNative() native { return noNative{} }

// Supported reports whether a native tray is available on this platform.
func Supported() bool { return false }

func (noNative) run(t *Tray) {
	t.log.Warn("system tray is not supported on this platform")
	<-t.quitCh
}

func (noNative) quit()                {}
func (noNative) setTooltip(string)    {}
func (noNative) setChecked(int, bool) {}
