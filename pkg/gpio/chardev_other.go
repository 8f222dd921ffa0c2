//go:build !linux

package gpio

// Chardev is unavailable off Linux; OpenChardev always fails so callers can
// fall back to the in-memory output.
type Chardev struct{}

// OpenChardev fails with ErrUnsupportedPlatform on non-Linux hosts.
func OpenChardev(chip string, line uint32, activeLow bool) (*Chardev, error) {
	return nil, ErrUnsupportedPlatform
}

// SetValue implements Output.
func (c *Chardev) SetValue(on bool) error {
	return ErrUnsupportedPlatform
}

// Close implements Output.
func (c *Chardev) Close() error {
	return nil
}
