package socket

// HostSocket is a socket as the host mesh stores it. Tag carries "<tag>|<actor>"
// until the host can attach the actor to a component.
type HostSocket struct {
	Name            string
	Location        [3]float32
	Rotation        [4]float32
	Scale           [3]float32
	Tag             string
	CreatedAtImport bool
}

// Mesh is the host mesh that receives sockets.
type Mesh interface {
	// RemoveImportedSockets drops the sockets created by a previous commit.
	RemoveImportedSockets()
	// ClearSockets drops every socket.
	ClearSockets()
	AddSocket(s HostSocket)
}

// Commit replaces the mesh's sockets with sockets, after making their names unique.
// With cleanImported the sockets of the previous commit are removed even when sockets
// is empty. sockets is renamed in place.
func Commit(mesh Mesh, sockets []Socket, cleanImported bool) {
	if cleanImported {
		mesh.RemoveImportedSockets()
	}
	if len(sockets) == 0 {
		return
	}
	UniqueNames(sockets)
	mesh.ClearSockets()
	for _, s := range sockets {
		mesh.AddSocket(HostSocket{
			Name:            s.Name,
			Location:        s.Transform.Translation,
			Rotation:        s.Transform.Rotation,
			Scale:           s.Transform.Scale,
			Tag:             s.Tag + "|" + s.Actor,
			CreatedAtImport: true,
		})
	}
}
