// File: internal/device/sampler.go
// Description: Captures device snapshots and renders them for the decision
// model. The screenshot and the accessibility dump are independent reads, so
// they are issued concurrently and joined before the snapshot is built.

package device

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/png"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SerupAI/mobiledroid/api/schemas"
)

var boundsRe = regexp.MustCompile(`\[(\d+),(\d+)\]\[(\d+),(\d+)\]`)

// Sampler produces DeviceSnapshots and their derived artifacts: the prompt
// rendering of the UI tree and the perceptual fingerprint used for stuck
// detection.
type Sampler struct {
	driver schemas.DeviceDriver
	logger *zap.Logger
}

// NewSampler creates a sampler over the given driver.
func NewSampler(driver schemas.DeviceDriver, logger *zap.Logger) *Sampler {
	return &Sampler{
		driver: driver,
		logger: logger.Named("sampler"),
	}
}

// Sample captures a fresh snapshot. The screenshot and UI dump run
// concurrently; screen dimensions come from the PNG header, falling back to
// the window manager when the image cannot be decoded.
func (s *Sampler) Sample(ctx context.Context) (*schemas.DeviceSnapshot, error) {
	var (
		shot   []byte
		rawXML string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shot, err = s.driver.Screenshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rawXML, err = s.driver.UIHierarchy(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to sample device state: %w", err)
	}

	width, height, err := imageSize(shot)
	if err != nil {
		s.logger.Debug("falling back to wm size", zap.Error(err))
		width, height, err = s.driver.ScreenSize(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to determine screen size: %w", err)
		}
	}

	elements := parseHierarchy(rawXML, s.logger)

	return &schemas.DeviceSnapshot{
		PNG:      shot,
		Elements: elements,
		Width:    width,
		Height:   height,
	}, nil
}

// Fingerprint hashes the screenshot so consecutive snapshots can be compared
// cheaply. Identical screens hash identically; that is all stuck detection
// needs.
func Fingerprint(snapshot *schemas.DeviceSnapshot) string {
	sum := sha256.Sum256(snapshot.PNG)
	return hex.EncodeToString(sum[:])
}

func imageSize(data []byte) (int, int, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode screenshot header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// parseHierarchy extracts the meaningful elements from a uiautomator dump.
// Nodes without any identity (text, description or resource id) or without
// bounds are skipped; they give the model nothing to act on.
func parseHierarchy(rawXML string, logger *zap.Logger) []schemas.UIElement {
	// The dump is sometimes prefixed with shell noise ("UI hierchary dumped
	// to: ..."), so locate the document start first.
	start := strings.Index(rawXML, "<?xml")
	if start == -1 {
		start = strings.Index(rawXML, "<hierarchy")
	}
	if start == -1 {
		logger.Warn("no XML document in ui dump")
		return nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(rawXML[start:]); err != nil {
		logger.Warn("failed to parse ui hierarchy", zap.Error(err))
		return nil
	}

	var elements []schemas.UIElement
	root := doc.Root()
	if root == nil {
		return nil
	}
	collectElements(root, &elements)
	return elements
}

func collectElements(el *etree.Element, out *[]schemas.UIElement) {
	text := el.SelectAttrValue("text", "")
	desc := el.SelectAttrValue("content-desc", "")
	resourceID := el.SelectAttrValue("resource-id", "")

	if bounds, ok := parseBounds(el.SelectAttrValue("bounds", "")); ok &&
		(text != "" || desc != "" || resourceID != "") {
		*out = append(*out, schemas.UIElement{
			Text:       text,
			Desc:       desc,
			ResourceID: resourceID,
			ClassName:  el.SelectAttrValue("class", ""),
			Bounds:     bounds,
			Clickable:  el.SelectAttrValue("clickable", "false") == "true",
			Enabled:    el.SelectAttrValue("enabled", "true") == "true",
			Focused:    el.SelectAttrValue("focused", "false") == "true",
		})
	}

	for _, child := range el.ChildElements() {
		collectElements(child, out)
	}
}

func parseBounds(raw string) (schemas.Bounds, bool) {
	m := boundsRe.FindStringSubmatch(raw)
	if m == nil {
		return schemas.Bounds{}, false
	}
	var b schemas.Bounds
	fmt.Sscanf(m[1], "%d", &b.Left)
	fmt.Sscanf(m[2], "%d", &b.Top)
	fmt.Sscanf(m[3], "%d", &b.Right)
	fmt.Sscanf(m[4], "%d", &b.Bottom)
	return b, true
}

// FormatElements renders the UI tree as the bullet list the step prompt
// embeds. Coordinates are element centers normalized to [0, 1] with three
// decimals, ready to be echoed back in a tap action.
func FormatElements(snapshot *schemas.DeviceSnapshot) string {
	if len(snapshot.Elements) == 0 {
		return "No UI elements detected. Use visual estimation for coordinates."
	}

	var sb strings.Builder
	sb.WriteString("UI Elements (USE THESE COORDINATES - they are more accurate than visual estimation):\n")

	for _, elem := range snapshot.Elements {
		x := float64(elem.Bounds.CenterX()) / float64(snapshot.Width)
		y := float64(elem.Bounds.CenterY()) / float64(snapshot.Height)

		var parts []string
		if elem.Text != "" {
			parts = append(parts, fmt.Sprintf("text=%q", elem.Text))
		}
		if elem.Desc != "" {
			parts = append(parts, fmt.Sprintf("desc=%q", elem.Desc))
		}
		if elem.ResourceID != "" {
			// Strip the package prefix; the short id is enough to disambiguate.
			rid := elem.ResourceID
			if idx := strings.LastIndex(rid, "/"); idx != -1 {
				rid = rid[idx+1:]
			}
			parts = append(parts, "id="+rid)
		}

		className := elem.ClassName
		if idx := strings.LastIndex(className, "."); idx != -1 {
			className = className[idx+1:]
		}
		if className == "" {
			className = "View"
		}

		var flags []string
		if elem.Clickable {
			flags = append(flags, "clickable")
		}
		if elem.Focused {
			flags = append(flags, "focused")
		}
		if !elem.Enabled {
			flags = append(flags, "disabled")
		}
		flagsStr := ""
		if len(flags) > 0 {
			flagsStr = " [" + strings.Join(flags, ", ") + "]"
		}

		fmt.Fprintf(&sb, "\n- %s: %s -> TAP at x=%.3f, y=%.3f%s",
			className, strings.Join(parts, " "), x, y, flagsStr)
	}

	return sb.String()
}
