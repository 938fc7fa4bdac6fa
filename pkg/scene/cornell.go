package scene

import (
	"github.com/goofoo/lumen/pkg/bsdf"
	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/geometry"
)

// Cornell box dimensions: a 0.56 m cube with a 0.13 m square emitter of
// radiance (17, 12, 4) just below the ceiling.
const (
	cornellSize  = 0.56
	cornellLight = 0.13
)

// quadMesh builds a two-triangle mesh with a constant tangent frame
func quadMesh(name string, materialID int32, normal core.Vec3, p0, p1, p2, p3 core.Vec3) geometry.Mesh {
	frame := core.FrameFromNormal(normal)
	return geometry.Mesh{
		Name:       name,
		Indices:    []int32{0, 1, 2, 0, 2, 3},
		Positions:  []core.Vec3{p0, p1, p2, p3},
		Frames:     []core.Frame{frame, frame, frame, frame},
		MaterialID: materialID,
	}
}

// NewCornellScene builds the canonical Cornell box: white floor, ceiling
// and back wall, red left wall, green right wall, one area light.
func NewCornellScene() (*Scene, CameraConfig) {
	white := bsdf.NewDiffuse(core.NewVec3(0.73, 0.71, 0.68))
	red := bsdf.NewDiffuse(core.NewVec3(0.63, 0.065, 0.05))
	green := bsdf.NewDiffuse(core.NewVec3(0.14, 0.45, 0.091))

	materials := []bsdf.BSDF{white, red, green}
	names := []string{"white", "red", "green"}

	s := cornellSize
	meshes := []geometry.Mesh{
		quadMesh("floor", 0, core.NewVec3(0, 1, 0),
			core.NewVec3(0, 0, 0), core.NewVec3(s, 0, 0),
			core.NewVec3(s, 0, s), core.NewVec3(0, 0, s)),
		quadMesh("ceiling", 0, core.NewVec3(0, -1, 0),
			core.NewVec3(0, s, 0), core.NewVec3(0, s, s),
			core.NewVec3(s, s, s), core.NewVec3(s, s, 0)),
		quadMesh("back", 0, core.NewVec3(0, 0, -1),
			core.NewVec3(0, 0, s), core.NewVec3(s, 0, s),
			core.NewVec3(s, s, s), core.NewVec3(0, s, s)),
		quadMesh("left", 1, core.NewVec3(1, 0, 0),
			core.NewVec3(0, 0, 0), core.NewVec3(0, 0, s),
			core.NewVec3(0, s, s), core.NewVec3(0, s, 0)),
		quadMesh("right", 2, core.NewVec3(-1, 0, 0),
			core.NewVec3(s, 0, 0), core.NewVec3(s, s, 0),
			core.NewVec3(s, s, s), core.NewVec3(s, 0, s)),
	}

	lights := NewAreaLights()
	half := cornellLight / 2
	cx, cz := s/2, s/2
	// two occlusion offsets below the ceiling, so a ceiling point lifted
	// off its surface for a shadow test still lies above the light
	ly := s - 2*occlusionEpsilon
	// winding chosen so the emitting side faces down into the box
	lights.AddQuad(core.NewVec3(17, 12, 4),
		core.NewVec3(cx-half, ly, cz-half),
		core.NewVec3(cx+half, ly, cz-half),
		core.NewVec3(cx+half, ly, cz+half),
		core.NewVec3(cx-half, ly, cz+half))

	camera := CameraConfig{
		Position: core.NewVec3(s/2, s/2, -0.8),
		LookAt:   core.NewVec3(s/2, s/2, s/2),
		Up:       core.NewVec3(0, 1, 0),
		FovX:     39.0,
		Near:     0.1,
		Far:      100.0,
	}

	return NewScene(meshes, lights, materials, names), camera
}
