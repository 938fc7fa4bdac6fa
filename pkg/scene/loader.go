package scene

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goofoo/lumen/pkg/bsdf"
	"github.com/goofoo/lumen/pkg/core"
	"github.com/goofoo/lumen/pkg/geometry"
	"github.com/hjson/hjson-go"
)

// scene file schema, decoded from hjson
type sceneFile struct {
	Camera    cameraFile     `json:"camera"`
	Materials []materialFile `json:"materials"`
	Lights    []lightFile    `json:"lights"`
	Meshes    []meshFile     `json:"meshes"`
}

type cameraFile struct {
	Position []float64 `json:"position"`
	LookAt   []float64 `json:"look_at"`
	Up       []float64 `json:"up"`
	FovX     float64   `json:"fov_x"`
	Near     float64   `json:"near"`
	Far      float64   `json:"far"`
}

type materialFile struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Albedo      []float64 `json:"albedo"`
	Diffuse     []float64 `json:"diffuse"`
	Specular    []float64 `json:"specular"`
	Power       float64   `json:"power"`
	Reflectance []float64 `json:"reflectance"`
	IOR         float64   `json:"ior"`
	ExternalIOR float64   `json:"external_ior"`
}

type lightFile struct {
	Radiance  []float64     `json:"radiance"`
	Quad      [][]float64   `json:"quad"`
	Triangles [][][]float64 `json:"triangles"`
}

type meshFile struct {
	Name      string        `json:"name"`
	Material  string        `json:"material"`
	Quads     [][][]float64 `json:"quads"`
	Triangles [][][]float64 `json:"triangles"`
}

// LoadScene reads an hjson scene description and builds the facade
func LoadScene(path string) (*Scene, CameraConfig, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, CameraConfig{}, fmt.Errorf("read scene: %w", err)
	}

	// hjson decodes into a generic map; round-trip through json gets us
	// typed structs with field validation
	var generic map[string]interface{}
	if err := hjson.Unmarshal(bytes, &generic); err != nil {
		return nil, CameraConfig{}, fmt.Errorf("parse scene %s: %w", path, err)
	}
	jsonBytes, err := json.Marshal(generic)
	if err != nil {
		return nil, CameraConfig{}, fmt.Errorf("parse scene %s: %w", path, err)
	}
	var file sceneFile
	if err := json.Unmarshal(jsonBytes, &file); err != nil {
		return nil, CameraConfig{}, fmt.Errorf("parse scene %s: %w", path, err)
	}

	return buildScene(&file)
}

func buildScene(file *sceneFile) (*Scene, CameraConfig, error) {
	materials := make([]bsdf.BSDF, 0, len(file.Materials))
	names := make([]string, 0, len(file.Materials))
	indexByName := make(map[string]int32)

	for i, m := range file.Materials {
		built, err := buildMaterial(m)
		if err != nil {
			return nil, CameraConfig{}, err
		}
		materials = append(materials, built)
		names = append(names, m.Name)
		indexByName[m.Name] = int32(i)
	}

	lights := NewAreaLights()
	for i, l := range file.Lights {
		radiance, err := vec3Of(l.Radiance, "light radiance")
		if err != nil {
			return nil, CameraConfig{}, err
		}
		if len(l.Quad) == 4 {
			p, err := pointsOf(l.Quad, 4, fmt.Sprintf("light %d quad", i))
			if err != nil {
				return nil, CameraConfig{}, err
			}
			lights.AddQuad(radiance, p[0], p[1], p[2], p[3])
		}
		for _, tri := range l.Triangles {
			p, err := pointsOf(tri, 3, fmt.Sprintf("light %d triangle", i))
			if err != nil {
				return nil, CameraConfig{}, err
			}
			lights.AddTriangle(radiance, p[0], p[1], p[2])
		}
	}
	if lights.NumLights() == 0 {
		return nil, CameraConfig{}, fmt.Errorf("scene has no emitters")
	}

	var meshes []geometry.Mesh
	for _, m := range file.Meshes {
		materialID, ok := indexByName[m.Material]
		if !ok {
			return nil, CameraConfig{}, fmt.Errorf("mesh %q references unknown material %q", m.Name, m.Material)
		}
		for qi, quad := range m.Quads {
			p, err := pointsOf(quad, 4, fmt.Sprintf("mesh %q quad %d", m.Name, qi))
			if err != nil {
				return nil, CameraConfig{}, err
			}
			normal := p[1].Subtract(p[0]).Cross(p[2].Subtract(p[0])).Normalize()
			meshes = append(meshes, quadMesh(m.Name, materialID, normal, p[0], p[1], p[2], p[3]))
		}
		for ti, tri := range m.Triangles {
			p, err := pointsOf(tri, 3, fmt.Sprintf("mesh %q triangle %d", m.Name, ti))
			if err != nil {
				return nil, CameraConfig{}, err
			}
			normal := p[1].Subtract(p[0]).Cross(p[2].Subtract(p[0])).Normalize()
			frame := core.FrameFromNormal(normal)
			meshes = append(meshes, geometry.Mesh{
				Name:       m.Name,
				Indices:    []int32{0, 1, 2},
				Positions:  p,
				Frames:     []core.Frame{frame, frame, frame},
				MaterialID: materialID,
			})
		}
	}

	camera, err := buildCamera(file.Camera)
	if err != nil {
		return nil, CameraConfig{}, err
	}

	return NewScene(meshes, lights, materials, names), camera, nil
}

func buildMaterial(m materialFile) (bsdf.BSDF, error) {
	switch m.Type {
	case "diffuse":
		albedo, err := vec3Of(m.Albedo, "material "+m.Name+" albedo")
		if err != nil {
			return nil, err
		}
		return bsdf.NewDiffuse(albedo), nil
	case "phong":
		diffuse, err := vec3Of(m.Diffuse, "material "+m.Name+" diffuse")
		if err != nil {
			return nil, err
		}
		specular, err := vec3Of(m.Specular, "material "+m.Name+" specular")
		if err != nil {
			return nil, err
		}
		if m.Power <= 0 {
			return nil, fmt.Errorf("material %q: phong power must be positive", m.Name)
		}
		return bsdf.NewPhong(diffuse, specular, m.Power), nil
	case "mirror":
		reflectance, err := vec3Of(m.Reflectance, "material "+m.Name+" reflectance")
		if err != nil {
			return nil, err
		}
		return bsdf.NewReflection(reflectance), nil
	case "glass":
		if m.IOR <= 0 {
			return nil, fmt.Errorf("material %q: glass ior must be positive", m.Name)
		}
		external := m.ExternalIOR
		if external == 0 {
			external = 1.0
		}
		return bsdf.NewTransmission(m.IOR, external), nil
	default:
		return nil, fmt.Errorf("material %q: unknown type %q", m.Name, m.Type)
	}
}

func buildCamera(c cameraFile) (CameraConfig, error) {
	position, err := vec3Of(c.Position, "camera position")
	if err != nil {
		return CameraConfig{}, err
	}
	lookAt, err := vec3Of(c.LookAt, "camera look_at")
	if err != nil {
		return CameraConfig{}, err
	}

	up := core.NewVec3(0, 1, 0)
	if len(c.Up) == 3 {
		up = core.NewVec3(c.Up[0], c.Up[1], c.Up[2])
	}

	config := CameraConfig{
		Position: position,
		LookAt:   lookAt,
		Up:       up,
		FovX:     c.FovX,
		Near:     c.Near,
		Far:      c.Far,
	}
	if config.FovX <= 0 || config.FovX >= 180 {
		return CameraConfig{}, fmt.Errorf("camera fov_x %g out of range", config.FovX)
	}
	if config.Near == 0 {
		config.Near = 0.1
	}
	if config.Far == 0 {
		config.Far = 100.0
	}
	return config, nil
}

func vec3Of(values []float64, what string) (core.Vec3, error) {
	if len(values) != 3 {
		return core.Vec3{}, fmt.Errorf("%s: expected 3 components, got %d", what, len(values))
	}
	return core.NewVec3(values[0], values[1], values[2]), nil
}

func pointsOf(values [][]float64, count int, what string) ([]core.Vec3, error) {
	if len(values) != count {
		return nil, fmt.Errorf("%s: expected %d points, got %d", what, count, len(values))
	}
	points := make([]core.Vec3, count)
	for i, p := range values {
		v, err := vec3Of(p, what)
		if err != nil {
			return nil, err
		}
		points[i] = v
	}
	return points, nil
}
