package query

import (
	"context"
	"fmt"

	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
)

// GroupNames lists the groups of a type visible from a part. Ordinary parts see the
// groups of their geometry node; a packed instance part carries its own.
func (l *Layer) GroupNames(ctx context.Context, geo engine.NodeID, part engine.PartInfo, groupType engine.GroupType) ([]string, error) {
	var points, prims int
	if part.IsInstanced {
		var err error
		points, prims, err = l.s.GetGroupCountOnPackedInstancePart(ctx, geo, part.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count groups on packed part %d: %w", part.ID, err)
		}
	} else {
		info, err := l.s.GetGeoInfo(ctx, geo)
		if err != nil {
			return nil, fmt.Errorf("failed to get geo info for %d: %w", geo, err)
		}
		points, prims = info.PointGroupCount, info.PrimitiveGroupCount
	}
	count := points
	if groupType == engine.GroupTypePrim {
		count = prims
	}
	if count <= 0 {
		return nil, nil
	}

	var handles []engine.StringHandle
	var err error
	if part.IsInstanced {
		handles, err = l.s.GetGroupNamesOnPackedInstancePart(ctx, geo, part.ID, groupType)
	} else {
		handles, err = l.s.GetGroupNames(ctx, geo, groupType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s groups of %d: %w", groupType, geo, err)
	}
	return attribute.ResolveHandles(ctx, l.s, handles)
}

// GroupMembership returns one 0/1 entry per point or face of the part. allMembers is
// true only when every element belongs to the group, so an empty group reports false.
func (l *Layer) GroupMembership(ctx context.Context, geo engine.NodeID, part engine.PartInfo, groupType engine.GroupType, name string) (members []int32, allMembers bool, err error) {
	count := part.ElementCount(groupType)
	if count < 1 {
		return nil, false, engine.NewNotFoundError(
			fmt.Sprintf("part %d has no %s elements", part.ID, groupType), nil).WithResource(name)
	}
	get := l.s.GetGroupMembership
	if part.IsInstanced {
		get = l.s.GetGroupMembershipOnPackedInstancePart
	}
	members, allEqual, err := get(ctx, geo, part.ID, groupType, name, 0, count)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get membership of group %s: %w", name, err)
	}
	return members, allEqual && len(members) > 0 && members[0] > 0, nil
}

// GroupVertices is the triangle vertex selection of one primitive group.
type GroupVertices struct {
	// Vertices has the length of the full vertex list; entries outside the group are -1.
	Vertices []int32
	// Faces lists the member face indices in order.
	Faces []int
	// FirstVertex and FirstFace locate the group's first member.
	FirstVertex int
	FirstFace   int
	// Wedges counts the selected vertices, three per face.
	Wedges int
}

// Usage marks vertices and faces claimed by any group, across calls to
// VertexListForGroup. Nil slices are ignored.
type Usage struct {
	Vertices []int32
	Faces    []int32
}

// VertexListForGroup selects the vertices of the faces in a primitive group. The part
// must be triangulated: face i owns vertices 3i to 3i+2. used, if not nil, is updated
// with the claimed vertices and faces.
func (l *Layer) VertexListForGroup(ctx context.Context, geo engine.NodeID, part engine.PartInfo, group string, fullVertexList []int32, used *Usage) (GroupVertices, error) {
	members, _, err := l.GroupMembership(ctx, geo, part, engine.GroupTypePrim, group)
	if err != nil {
		return GroupVertices{}, err
	}
	out := GroupVertices{Vertices: make([]int32, len(fullVertexList))}
	for i := range out.Vertices {
		out.Vertices[i] = -1
	}
	for face, m := range members {
		if m <= 0 {
			continue
		}
		out.Faces = append(out.Faces, face)
		first := face * 3
		last := first + 2
		if last < len(fullVertexList) {
			copy(out.Vertices[first:last+1], fullVertexList[first:last+1])
		}
		if used != nil {
			if last < len(used.Vertices) {
				used.Vertices[first], used.Vertices[first+1], used.Vertices[last] = 1, 1, 1
			}
			if face < len(used.Faces) {
				used.Faces[face] = 1
			}
		}
		if out.Wedges == 0 {
			out.FirstVertex = first
			out.FirstFace = face
		}
		out.Wedges += 3
	}
	return out, nil
}
