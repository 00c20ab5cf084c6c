// Package hardware reports which compute backend the service runs on. The
// answer is informational: it is attached to responses and health output and
// never changes a verdict.
package hardware

import (
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

type Device string

const (
	DeviceNPU Device = "NPU"
	DeviceGPU Device = "GPU"
)

// accelPattern matches kernel accelerator nodes, relative to the filesystem
// root.
const accelPattern = "dev/accel/accel*"

type Prober struct {
	fsys     fs.FS
	override string
}

// NewProber probes the real root filesystem. A non-empty override (NPU or
// GPU, any case) short-circuits detection.
func NewProber(override string) *Prober {
	return NewProberFS(os.DirFS("/"), override)
}

func NewProberFS(fsys fs.FS, override string) *Prober {
	return &Prober{
		fsys:     fsys,
		override: strings.ToUpper(strings.TrimSpace(override)),
	}
}

// Detect returns NPU when an accelerator node is present, GPU otherwise.
func (p *Prober) Detect() Device {
	switch Device(p.override) {
	case DeviceNPU, DeviceGPU:
		log.Info().Str("device", p.override).Msg("Compute backend set by configuration")
		return Device(p.override)
	}

	matches, err := fs.Glob(p.fsys, accelPattern)
	if err != nil {
		log.Warn().Err(err).Msg("Accelerator probe failed, assuming GPU")
		return DeviceGPU
	}
	if len(matches) > 0 {
		log.Info().Strs("nodes", matches).Msg("Accelerator found, using NPU backend")
		return DeviceNPU
	}

	log.Info().Msg("No accelerator found, using GPU backend")
	return DeviceGPU
}
