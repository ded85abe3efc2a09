package extract

import (
	"bytes"
	"fmt"

	"capstan/internal/services"
	"capstan/internal/smc"
)

// encodePLY renders a scan mesh as ASCII PLY.
func encodePLY(mesh smc.ScanMesh) ([]byte, error) {
	if mesh.Vertices == nil {
		return nil, services.Wrap(services.ErrExtraction, "extract", "scan", "mesh has no vertices", nil)
	}
	rows, cols := mesh.Vertices.Dims()
	if cols != 3 {
		return nil, services.Wrap(services.ErrExtraction, "extract", "scan",
			fmt.Sprintf("vertices have %d columns, want 3", cols), nil)
	}
	if len(mesh.Faces)%3 != 0 {
		return nil, services.Wrap(services.ErrExtraction, "extract", "scan",
			fmt.Sprintf("face index count %d not divisible by 3", len(mesh.Faces)), nil)
	}
	faceCount := len(mesh.Faces) / 3

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ply\nformat ascii 1.0\n")
	fmt.Fprintf(&buf, "element vertex %d\n", rows)
	fmt.Fprintf(&buf, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(&buf, "element face %d\n", faceCount)
	fmt.Fprintf(&buf, "property list uchar int vertex_indices\n")
	fmt.Fprintf(&buf, "end_header\n")

	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "%g %g %g\n",
			mesh.Vertices.At(i, 0), mesh.Vertices.At(i, 1), mesh.Vertices.At(i, 2))
	}
	for i := 0; i < faceCount; i++ {
		fmt.Fprintf(&buf, "3 %d %d %d\n",
			mesh.Faces[3*i], mesh.Faces[3*i+1], mesh.Faces[3*i+2])
	}
	return buf.Bytes(), nil
}
