package regrid

import (
	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// Union merges the body and the cropped slab into the output solid. A
// result that is not a closed manifold fails like a kernel error. There is
// no retry: a failure carries both operands so they can be exported.
func Union(k kernel.Kernel, body, slab *mesh.Mesh) (*mesh.Mesh, error) {
	out, err := k.Union(body, slab)
	if err == nil && out.IsEmpty() {
		err = errEmptyResult
	}
	if err == nil {
		err = mesh.CheckSolid(out)
	}
	if err == nil {
		err = mesh.CheckManifold(out)
	}
	if err != nil {
		return nil, booleanError("union", kernel.OpUnion, err, operandOf("body", body), operandOf("slab", slab))
	}
	return out.Renamed("output"), nil
}

// PreUnion returns body and slab side by side without a boolean, for
// inspection when the union is skipped or failed.
func PreUnion(body, slab *mesh.Mesh) *mesh.Mesh {
	return mesh.Concat("pre_union", body, slab)
}
