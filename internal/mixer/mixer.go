// Package mixer wraps the system volume mixer behind a clamped get/set
// contract. It is a thin boundary with no coordination logic of its own.
package mixer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"git.home.luguber.info/inful/audiohub/internal/foundation"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/privileged"
)

// Clamp bounds a volume percentage to [0,100].
func Clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Mixer is the volume boundary consumed by the coordinator and the Bluetooth
// source. Callers clamp percentages before dispatch.
type Mixer interface {
	Volume(ctx context.Context, device string) (foundation.Option[int], error)
	SetVolume(ctx context.Context, device string, percent int) error
}

var volumePattern = regexp.MustCompile(`\[(\d{1,3})%\]`)

// AlsaMixer drives amixer through the command runner.
type AlsaMixer struct {
	runner  privileged.Runner
	control string
}

// NewAlsaMixer creates a mixer for the given simple control (usually "Master").
func NewAlsaMixer(runner privileged.Runner, control string) *AlsaMixer {
	if control == "" {
		control = "Master"
	}
	return &AlsaMixer{runner: runner, control: control}
}

// Volume reads the current percentage for the device, or None when the
// control output carries no parsable volume.
func (m *AlsaMixer) Volume(ctx context.Context, device string) (foundation.Option[int], error) {
	res, err := m.runner.Run(ctx, "amixer", "-D", device, "sget", m.control)
	if err != nil {
		return foundation.None[int](), err
	}
	if !res.Success() {
		return foundation.None[int](), ferrors.DeviceError("mixer query failed").
			WithContext("device", device).
			WithContext("stderr", res.Stderr).
			Build()
	}

	match := volumePattern.FindStringSubmatch(res.Stdout)
	if match == nil {
		return foundation.None[int](), nil
	}
	percent, err := strconv.Atoi(match[1])
	if err != nil {
		return foundation.None[int](), nil
	}
	return foundation.Some(Clamp(percent)), nil
}

// SetVolume applies the percentage to the device. The value is clamped again
// here so an unclamped caller can never push an out-of-range value to amixer.
func (m *AlsaMixer) SetVolume(ctx context.Context, device string, percent int) error {
	percent = Clamp(percent)

	res, err := m.runner.Run(ctx, "amixer", "-D", device, "sset", m.control, fmt.Sprintf("%d%%", percent))
	if err != nil {
		return err
	}
	if !res.Success() {
		return ferrors.DeviceError("mixer set failed").
			WithContext("device", device).
			WithContext("percent", percent).
			WithContext("stderr", res.Stderr).
			Build()
	}
	return nil
}
