package shaders

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed particles_compute.wgsl
var particlesComputeTemplate string

//go:embed particles_render.wgsl
var ParticlesRenderWGSL string

const ComputeEntry = "cs_main"

const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// ParticlesComputeWGSL returns the simulation kernel compiled for the given
// workgroup size.
func ParticlesComputeWGSL(workgroupSize uint32) string {
	return strings.ReplaceAll(particlesComputeTemplate, "{{WORKGROUP_SIZE}}", strconv.FormatUint(uint64(workgroupSize), 10))
}
