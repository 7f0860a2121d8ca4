// Package socket extracts mesh sockets from cooked geometry.
//
// Two conventions are supported and may coexist on one part:
//
//   - numbered detail attributes: mesh_socket0_pos, mesh_socket0_rot, mesh_socket0_name, ...
//   - point groups named socket_* (or the legacy mesh_socket_*), one socket per member
//     point, reading P, rot or N, scale and the mesh socket name/actor/tag attributes.
//
// Transforms are converted to host space with the transform codec. Commit hands the
// result to a host Mesh after giving every socket a unique name.
package socket
