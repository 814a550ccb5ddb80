package particles

import (
	"fmt"
	"math"

	"github.com/gekko3d/particlert/rt/gpu"
)

// Integrate advances one particle by one step, the same way cs_main does.
func Integrate(p Particle, params SimParams) Particle {
	dt := params.StepSize
	var v [3]float32
	for i := 0; i < 3; i++ {
		v[i] = p.Velocity[i] - p.Position[i]*params.Attraction*dt
		v[i] *= params.Damping
	}
	out := p
	for i := 0; i < 3; i++ {
		out.Position[i] = p.Position[i] + v[i]*dt
		out.Velocity[i] = v[i]
	}
	out.Velocity[3] = 0
	speed := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	out.Color = speedColor(speed)
	return out
}

func speedColor(speed float32) [4]float32 {
	t := speed * 0.05
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return [4]float32{t, 0.3, 1 - t, 1}
}

// StepKernel runs cs_main on the host over the dispatched workgroups.
func StepKernel(inv *gpu.Invocation) error {
	params, err := decodeSimParams(inv.Bytes(bindingParams))
	if err != nil {
		return err
	}
	src, dst := inv.Bytes(bindingRead), inv.Bytes(bindingWrite)
	count := int(params.Count)
	if len(src) < count*ParticleSize || len(dst) < count*ParticleSize {
		return fmt.Errorf("%w: %d particles need %d bytes", ErrBufferSizeMismatch, count, count*ParticleSize)
	}

	size := int(inv.WorkgroupSize)
	for g := 0; g < int(inv.Groups); g++ {
		for local := 0; local < size; local++ {
			i := g*size + local
			if i >= count {
				return nil
			}
			off := i * ParticleSize
			Integrate(getParticle(src[off:]), params).put(dst[off:])
		}
	}
	return nil
}
