// File: internal/device/driver.go
package device

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SerupAI/mobiledroid/api/schemas"
	"github.com/SerupAI/mobiledroid/internal/adb"
)

// uiDumpPath is where uiautomator writes the hierarchy before we read it
// back. Dumping to a file is more reliable across Android versions than
// dumping to stdout.
const uiDumpPath = "/sdcard/ui_hierarchy.xml"

var screenSizeRe = regexp.MustCompile(`(\d+)x(\d+)`)

// Driver implements schemas.DeviceDriver on top of the ADB shell surface of
// an Android device.
type Driver struct {
	adb     *adb.Client
	serial  string
	timeout time.Duration
	logger  *zap.Logger
}

var _ schemas.DeviceDriver = (*Driver)(nil)

// NewDriver creates a driver for the device identified by serial. A positive
// timeout bounds every individual device command.
func NewDriver(client *adb.Client, serial string, timeout time.Duration, logger *zap.Logger) *Driver {
	return &Driver{
		adb:     client,
		serial:  serial,
		timeout: timeout,
		logger:  logger.Named("device"),
	}
}

func (d *Driver) cmdContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}

// Screenshot captures the screen through the exec service so the PNG bytes
// are not CRLF-mangled by the shell.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := d.cmdContext(ctx)
	defer cancel()
	out, err := d.adb.Exec(ctx, d.serial, "screencap -p")
	if err != nil {
		return nil, fmt.Errorf("screencap failed: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screencap returned no data")
	}
	return out, nil
}

// UIHierarchy dumps the accessibility tree and returns the raw XML.
func (d *Driver) UIHierarchy(ctx context.Context) (string, error) {
	ctx, cancel := d.cmdContext(ctx)
	defer cancel()
	if _, err := d.adb.Shell(ctx, d.serial, "uiautomator dump "+uiDumpPath); err != nil {
		return "", fmt.Errorf("uiautomator dump failed: %w", err)
	}
	out, err := d.adb.Shell(ctx, d.serial, "cat "+uiDumpPath)
	if err != nil {
		return "", fmt.Errorf("failed to read ui dump: %w", err)
	}
	return out, nil
}

// ScreenSize parses `wm size` output like "Physical size: 1080x2400".
func (d *Driver) ScreenSize(ctx context.Context) (int, int, error) {
	ctx, cancel := d.cmdContext(ctx)
	defer cancel()
	out, err := d.adb.Shell(ctx, d.serial, "wm size")
	if err != nil {
		return 0, 0, fmt.Errorf("wm size failed: %w", err)
	}
	m := screenSizeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("could not parse screen size from %q", strings.TrimSpace(out))
	}
	var w, h int
	fmt.Sscanf(m[1], "%d", &w)
	fmt.Sscanf(m[2], "%d", &h)
	return w, h, nil
}

// Tap issues a single tap at absolute pixel coordinates.
func (d *Driver) Tap(ctx context.Context, x, y int) error {
	return d.input(ctx, fmt.Sprintf("input tap %d %d", x, y))
}

// LongPress holds a touch by swiping from a point to itself.
func (d *Driver) LongPress(ctx context.Context, x, y int, hold time.Duration) error {
	return d.input(ctx, fmt.Sprintf("input touchscreen swipe %d %d %d %d %d", x, y, x, y, hold.Milliseconds()))
}

// Swipe drags between two points over the given duration.
func (d *Driver) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	return d.input(ctx, fmt.Sprintf("input touchscreen swipe %d %d %d %d %d", x1, y1, x2, y2, duration.Milliseconds()))
}

// TypeText sends text to the focused input field. Single quotes are escaped
// for the device shell.
func (d *Driver) TypeText(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, `'`, `'\''`)
	return d.input(ctx, fmt.Sprintf("input text '%s'", escaped))
}

// PressKey sends a keyevent; key is the suffix of the Android keycode name
// (BACK, HOME, ENTER).
func (d *Driver) PressKey(ctx context.Context, key string) error {
	return d.input(ctx, "input keyevent KEYCODE_"+strings.ToUpper(key))
}

func (d *Driver) input(ctx context.Context, cmd string) error {
	d.logger.Debug("device input", zap.String("cmd", cmd))
	ctx, cancel := d.cmdContext(ctx)
	defer cancel()
	if _, err := d.adb.Shell(ctx, d.serial, cmd); err != nil {
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	return nil
}
