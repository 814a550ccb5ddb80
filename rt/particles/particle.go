package particles

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// ParticleSize is the byte size of one Particle in GPU memory.
const ParticleSize = 48

// Particle matches the WGSL struct in particles_compute.wgsl.
// struct Particle { position: vec4; velocity: vec4; color: vec4; }
type Particle struct {
	Position [4]float32
	Velocity [4]float32
	Color    [4]float32
}

func putVec4(b []byte, v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
}

func getVec4(b []byte) [4]float32 {
	var v [4]float32
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func (p Particle) put(b []byte) {
	putVec4(b[0:], p.Position)
	putVec4(b[16:], p.Velocity)
	putVec4(b[32:], p.Color)
}

func getParticle(b []byte) Particle {
	return Particle{
		Position: getVec4(b[0:]),
		Velocity: getVec4(b[16:]),
		Color:    getVec4(b[32:]),
	}
}

func EncodeParticles(ps []Particle) []byte {
	buf := make([]byte, len(ps)*ParticleSize)
	for i, p := range ps {
		p.put(buf[i*ParticleSize:])
	}
	return buf
}

func DecodeParticles(b []byte) ([]Particle, error) {
	if len(b)%ParticleSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of particles", ErrBufferSizeMismatch, len(b))
	}
	out := make([]Particle, len(b)/ParticleSize)
	for i := range out {
		out[i] = getParticle(b[i*ParticleSize:])
	}
	return out, nil
}

// SeedParticles spreads count particles uniformly over a box of the given
// extent centred on the origin. Velocities start at zero.
func SeedParticles(count int, extent [3]float32, seed int64) []Particle {
	rng := rand.New(rand.NewSource(seed))
	ps := make([]Particle, count)
	for i := range ps {
		ps[i] = Particle{
			Position: [4]float32{
				(rng.Float32() - 0.5) * extent[0],
				(rng.Float32() - 0.5) * extent[1],
				(rng.Float32() - 0.5) * extent[2],
				1,
			},
			Color: [4]float32{0, 0, 0, 1},
		}
	}
	return ps
}
