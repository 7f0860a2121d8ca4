package memengine

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Scene is a YAML description of the libraries and assets an Engine serves.
type Scene struct {
	License   int                   `yaml:"license"`
	Libraries []SceneLibrary        `yaml:"libraries"`
	Memory    []string              `yaml:"memory_library"`
	Assets    map[string]SceneAsset `yaml:"assets"`
	Status    map[string]string     `yaml:"status"`
	CookState []string              `yaml:"cook_states"`
}

// SceneLibrary maps a library file path to the operators it provides.
type SceneLibrary struct {
	Path   string   `yaml:"path"`
	Assets []string `yaml:"assets"`
}

// SceneAsset is the content created when an operator is instantiated.
type SceneAsset struct {
	CookResult string        `yaml:"cook_result"`
	Objects    []SceneObject `yaml:"objects"`
	Parms      []SceneParm   `yaml:"parms"`
}

// SceneObject is one object node of an asset.
type SceneObject struct {
	Name      string         `yaml:"name"`
	Transform SceneTransform `yaml:"transform"`
	Geos      []SceneGeo     `yaml:"geos"`
}

// SceneTransform is an engine-space transform. Omitted fields default to identity.
type SceneTransform struct {
	Position []float32 `yaml:"position"`
	Rotation []float32 `yaml:"rotation"`
	Scale    []float32 `yaml:"scale"`
}

// SceneGeo is a geometry node under an object.
type SceneGeo struct {
	Name    string      `yaml:"name"`
	Display *bool       `yaml:"display"`
	Parts   []ScenePart `yaml:"parts"`
}

// ScenePart is a part with its topology, attributes and groups.
type ScenePart struct {
	Name       string           `yaml:"name"`
	Type       string           `yaml:"type"`
	Points     int              `yaml:"points"`
	FaceCounts []int32          `yaml:"face_counts"`
	VertexList []int32          `yaml:"vertex_list"`
	Attributes []SceneAttribute `yaml:"attributes"`
	Groups     []SceneGroup     `yaml:"groups"`
}

// SceneAttribute is one attribute; the value list matching Storage is used.
type SceneAttribute struct {
	Name    string    `yaml:"name"`
	Owner   string    `yaml:"owner"`
	Storage string    `yaml:"storage"`
	Tuple   int       `yaml:"tuple"`
	Ints    []int64   `yaml:"ints"`
	Floats  []float64 `yaml:"floats"`
	Strings []string  `yaml:"strings"`
}

// SceneGroup is a point or primitive group.
type SceneGroup struct {
	Name    string  `yaml:"name"`
	Type    string  `yaml:"type"`
	Members []int32 `yaml:"members"`
}

// SceneParm is a node parameter.
type SceneParm struct {
	Name    string            `yaml:"name"`
	Label   string            `yaml:"label"`
	Type    string            `yaml:"type"`
	Ints    []int32           `yaml:"ints"`
	Floats  []float32         `yaml:"floats"`
	Strings []string          `yaml:"strings"`
	Tags    map[string]string `yaml:"tags"`
}

// LoadScene decodes a scene from YAML.
func LoadScene(r io.Reader) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return &s, nil
		}
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	return &s, nil
}

// LoadSceneFile decodes a scene from a YAML file.
func LoadSceneFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene %s: %w", path, err)
	}
	defer f.Close()
	return LoadScene(f)
}

// NewFromScene returns an engine serving the scene.
func NewFromScene(s *Scene) (*Engine, error) {
	e := New()
	if err := s.Apply(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply registers the scene's libraries, assets and status on e.
func (s *Scene) Apply(e *Engine) error {
	if s.License != 0 {
		if s.License < 0 || s.License >= int(engine.LicenseMax) {
			return fmt.Errorf("invalid license value: %d", s.License)
		}
		e.SetLicense(engine.License(s.License))
	}
	for _, lib := range s.Libraries {
		e.AddLibraryFile(lib.Path, lib.Assets...)
	}
	if len(s.Memory) > 0 {
		e.SetMemoryLibrary(s.Memory...)
	}
	for key, text := range s.Status {
		t, err := parseStatusType(key)
		if err != nil {
			return err
		}
		e.SetStatusString(t, text)
	}
	for _, name := range s.CookState {
		var st engine.State
		if err := st.UnmarshalJSON([]byte(`"` + name + `"`)); err != nil {
			return err
		}
		e.ScriptCookStates(st)
	}
	for op, asset := range s.Assets {
		if err := asset.validate(); err != nil {
			return fmt.Errorf("asset %s: %w", op, err)
		}
		e.DefineAsset(op, asset.template())
	}
	return nil
}

func (a SceneAsset) validate() error {
	for _, obj := range a.Objects {
		for _, g := range obj.Geos {
			for _, p := range g.Parts {
				if _, err := parsePartType(p.Type); err != nil {
					return err
				}
				for _, attr := range p.Attributes {
					if _, err := attr.build(); err != nil {
						return err
					}
				}
				for _, grp := range p.Groups {
					if _, err := parseGroupType(grp.Type); err != nil {
						return err
					}
				}
			}
		}
	}
	for _, p := range a.Parms {
		if _, err := parseParmType(p.Type); err != nil {
			return err
		}
	}
	return nil
}

// template assumes validate passed.
func (a SceneAsset) template() AssetTemplate {
	return func(b *Builder, asset engine.NodeID) {
		if a.CookResult != "" {
			b.SetNodeCookResult(asset, a.CookResult)
		}
		for _, p := range a.Parms {
			t, _ := parseParmType(p.Type)
			b.AddParm(asset, engine.ParmInfo{
				ParentID: engine.InvalidParmID,
				Type:     t,
				Name:     p.Name,
				Label:    p.Label,
				Tags:     p.Tags,
			}, p.Ints, p.Floats, p.Strings)
		}
		for _, obj := range a.Objects {
			objID := b.AddObject(asset, obj.Name, obj.Transform.toEngine())
			for _, g := range obj.Geos {
				display := g.Display == nil || *g.Display
				geoID := b.AddGeo(objID, g.Name, display)
				for _, p := range g.Parts {
					pt, _ := parsePartType(p.Type)
					partID := b.AddPart(geoID, engine.PartInfo{
						Name:       p.Name,
						Type:       pt,
						PointCount: p.Points,
					})
					b.SetFaces(geoID, partID, p.FaceCounts, p.VertexList)
					for _, attr := range p.Attributes {
						built, _ := attr.build()
						b.SetAttribute(geoID, partID, attr.Name, built)
					}
					for _, grp := range p.Groups {
						gt, _ := parseGroupType(grp.Type)
						b.SetGroup(geoID, partID, gt, grp.Name, grp.Members...)
					}
				}
			}
		}
	}
}

func (t SceneTransform) toEngine() engine.Transform {
	out := engine.IdentityTransform()
	copy(out.Position[:], t.Position)
	copy(out.RotationQuaternion[:], t.Rotation)
	if len(t.Scale) > 0 {
		copy(out.Scale[:], t.Scale)
	}
	return out
}

func (a SceneAttribute) build() (*Attribute, error) {
	owner, err := parseOwner(a.Owner)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	tuple := a.Tuple
	if tuple <= 0 {
		tuple = 1
	}
	storage := strings.ToLower(a.Storage)
	if storage == "" {
		switch {
		case len(a.Strings) > 0:
			storage = "string"
		case len(a.Floats) > 0:
			storage = "float"
		default:
			storage = "int"
		}
	}
	switch storage {
	case "int":
		vals := make([]int32, len(a.Ints))
		for i, v := range a.Ints {
			vals[i] = int32(v)
		}
		return IntAttr(owner, tuple, vals...), nil
	case "int64":
		return Int64Attr(owner, tuple, a.Ints...), nil
	case "float":
		vals := make([]float32, len(a.Floats))
		for i, v := range a.Floats {
			vals[i] = float32(v)
		}
		return FloatAttr(owner, tuple, vals...), nil
	case "float64":
		return Float64Attr(owner, tuple, a.Floats...), nil
	case "string":
		return StringAttr(owner, a.Strings...), nil
	}
	return nil, fmt.Errorf("attribute %s: invalid storage %q", a.Name, a.Storage)
}

func parseOwner(s string) (engine.AttributeOwner, error) {
	switch strings.ToLower(s) {
	case "point", "":
		return engine.OwnerPoint, nil
	case "vertex":
		return engine.OwnerVertex, nil
	case "prim", "primitive":
		return engine.OwnerPrim, nil
	case "detail":
		return engine.OwnerDetail, nil
	}
	return engine.OwnerAny, fmt.Errorf("invalid owner %q", s)
}

func parseGroupType(s string) (engine.GroupType, error) {
	switch strings.ToLower(s) {
	case "point", "":
		return engine.GroupTypePoint, nil
	case "prim", "primitive":
		return engine.GroupTypePrim, nil
	}
	return 0, fmt.Errorf("invalid group type %q", s)
}

func parsePartType(s string) (engine.PartType, error) {
	switch strings.ToLower(s) {
	case "mesh", "":
		return engine.PartTypeMesh, nil
	case "curve":
		return engine.PartTypeCurve, nil
	case "volume":
		return engine.PartTypeVolume, nil
	case "instancer":
		return engine.PartTypeInstancer, nil
	case "box":
		return engine.PartTypeBox, nil
	case "sphere":
		return engine.PartTypeSphere, nil
	}
	return engine.PartTypeInvalid, fmt.Errorf("invalid part type %q", s)
}

func parseParmType(s string) (engine.ParmType, error) {
	switch strings.ToLower(s) {
	case "int":
		return engine.ParmTypeInt, nil
	case "toggle":
		return engine.ParmTypeToggle, nil
	case "float":
		return engine.ParmTypeFloat, nil
	case "color":
		return engine.ParmTypeColor, nil
	case "string":
		return engine.ParmTypeString, nil
	case "path":
		return engine.ParmTypePath, nil
	}
	return 0, fmt.Errorf("invalid parameter type %q", s)
}

func parseStatusType(s string) (engine.StatusType, error) {
	switch s {
	case "call_result":
		return engine.StatusCallResult, nil
	case "cook_result":
		return engine.StatusCookResult, nil
	case "cook_state":
		return engine.StatusCookState, nil
	}
	return 0, fmt.Errorf("invalid status type %q", s)
}
