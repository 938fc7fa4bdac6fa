package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goofoo/lumen/pkg/core"
)

const testSceneHJSON = `{
  // a shoebox with one quad light
  camera: {
    position: [0.5, 0.5, -2]
    look_at: [0.5, 0.5, 0.5]
    fov_x: 45
  }
  materials: [
    { name: "white", type: "diffuse", albedo: [0.7, 0.7, 0.7] }
    { name: "shiny", type: "phong", diffuse: [0.4, 0.4, 0.4], specular: [0.3, 0.3, 0.3], power: 20 }
    { name: "mirror", type: "mirror", reflectance: [0.9, 0.9, 0.9] }
    { name: "glass", type: "glass", ior: 1.5 }
  ]
  lights: [
    {
      radiance: [10, 10, 10]
      quad: [[0.4, 0.99, 0.4], [0.6, 0.99, 0.4], [0.6, 0.99, 0.6], [0.4, 0.99, 0.6]]
    }
  ]
  meshes: [
    {
      name: floor
      material: white
      quads: [[[0, 0, 0], [1, 0, 0], [1, 0, 1], [0, 0, 1]]]
    }
    {
      name: blocker
      material: shiny
      triangles: [[[0.2, 0.5, 0.5], [0.8, 0.5, 0.5], [0.5, 0.8, 0.5]]]
    }
  ]
}`

func writeTestScene(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.hjson")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScene(t *testing.T) {
	s, camera, err := LoadScene(writeTestScene(t, testSceneHJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(s.Materials) != 4 {
		t.Errorf("loaded %d materials, want 4", len(s.Materials))
	}
	if s.Lights.NumLights() != 1 {
		t.Errorf("loaded %d lights, want 1", s.Lights.NumLights())
	}
	if len(s.Meshes) != 2 {
		t.Errorf("loaded %d meshes, want 2", len(s.Meshes))
	}
	if camera.FovX != 45 {
		t.Errorf("camera fov %g, want 45", camera.FovX)
	}
	if camera.Up.Subtract(core.NewVec3(0, 1, 0)).L1Norm() > 1e-12 {
		t.Errorf("default up vector %v", camera.Up)
	}

	// the loaded geometry is traceable
	from := core.SurfacePoint{Position: core.NewVec3(0.5, 0.5, -2)}
	hit := s.Intersect(from, core.NewVec3(0, -0.2, 1).Normalize())
	if !hit.IsPresent() {
		t.Error("ray through the loaded scene missed everything")
	}
}

func TestLoadSceneErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"UnknownMaterialType", `{
			camera: { position: [0,0,-1], look_at: [0,0,0], fov_x: 45 }
			materials: [ { name: "bad", type: "velvet" } ]
			lights: [ { radiance: [1,1,1], quad: [[0,1,0],[1,1,0],[1,1,1],[0,1,1]] } ]
		}`},
		{"UnknownMeshMaterial", `{
			camera: { position: [0,0,-1], look_at: [0,0,0], fov_x: 45 }
			materials: [ { name: "white", type: "diffuse", albedo: [0.5,0.5,0.5] } ]
			lights: [ { radiance: [1,1,1], quad: [[0,1,0],[1,1,0],[1,1,1],[0,1,1]] } ]
			meshes: [ { name: "m", material: "missing", quads: [[[0,0,0],[1,0,0],[1,0,1],[0,0,1]]] } ]
		}`},
		{"NoEmitters", `{
			camera: { position: [0,0,-1], look_at: [0,0,0], fov_x: 45 }
			materials: [ { name: "white", type: "diffuse", albedo: [0.5,0.5,0.5] } ]
		}`},
		{"BadFov", `{
			camera: { position: [0,0,-1], look_at: [0,0,0], fov_x: 0 }
			materials: []
			lights: [ { radiance: [1,1,1], quad: [[0,1,0],[1,1,0],[1,1,1],[0,1,1]] } ]
		}`},
		{"ShortVector", `{
			camera: { position: [0,0], look_at: [0,0,0], fov_x: 45 }
			materials: []
			lights: [ { radiance: [1,1,1], quad: [[0,1,0],[1,1,0],[1,1,1],[0,1,1]] } ]
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := LoadScene(writeTestScene(t, tt.content)); err == nil {
				t.Error("expected a configuration error")
			}
		})
	}
}

func TestLoadSceneMissingFile(t *testing.T) {
	if _, _, err := LoadScene("/nonexistent/scene.hjson"); err == nil {
		t.Error("expected an I/O error")
	}
}
