//go:build linux

package gpio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// consumerLabel shows up in /sys/kernel/debug/gpio and gpioinfo output.
const consumerLabel = "blinksock"

// Chardev drives one output line of a Linux GPIO character device
// (/dev/gpiochipN) through the v2 uAPI.
type Chardev struct {
	lineFd int
}

// OpenChardev requests the given line of a GPIO chip as an output. activeLow
// inverts the logical level in the kernel, so SetValue(true) always means
// "indicator on" regardless of wiring.
func OpenChardev(chip string, line uint32, activeLow bool) (*Chardev, error) {
	chipFd, err := unix.Open(chip, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}
	defer unix.Close(chipFd)

	var req unix.GpioV2LineRequest
	req.Offsets[0] = line
	req.Num_lines = 1
	copy(req.Consumer[:], consumerLabel)
	req.Config.Flags = unix.GPIO_V2_LINE_FLAG_OUTPUT
	if activeLow {
		req.Config.Flags |= unix.GPIO_V2_LINE_FLAG_ACTIVE_LOW
	}

	if err := ioctl(chipFd, unix.GPIO_V2_GET_LINE_IOCTL, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("request line %d on %s: %w", line, chip, err)
	}

	return &Chardev{lineFd: int(req.Fd)}, nil
}

// SetValue drives the line level.
func (c *Chardev) SetValue(on bool) error {
	values := unix.GpioV2LineValues{Mask: 1}
	if on {
		values.Bits = 1
	}
	if err := ioctl(c.lineFd, unix.GPIO_V2_LINE_SET_VALUES_IOCTL, unsafe.Pointer(&values)); err != nil {
		return fmt.Errorf("set line value: %w", err)
	}
	return nil
}

// Close releases the line request.
func (c *Chardev) Close() error {
	return unix.Close(c.lineFd)
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
