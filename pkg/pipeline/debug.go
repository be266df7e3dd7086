package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/regrid"
)

// debugWriter exports intermediate meshes. Export failures are logged and
// never fail the run.
type debugWriter struct {
	dir    string
	format meshio.Format
	log    logrus.FieldLogger
	files  []string
}

func (d *debugWriter) write(name string, m *mesh.Mesh) {
	if m == nil || m.IsEmpty() {
		d.log.WithField("artifact", name).Debug("skipping empty debug artifact")
		return
	}
	path := filepath.Join(d.dir, name+".stl")
	if err := meshio.Save(path, m, d.format); err != nil {
		d.log.WithError(err).WithField("artifact", name).Warn("debug export failed")
		return
	}
	d.files = append(d.files, path)
	d.log.WithFields(logrus.Fields{
		"path":      path,
		"vertices":  m.VertexCount(),
		"triangles": m.TriangleCount(),
	}).Info("exported debug artifact")
}

// intermediates writes the body, slab, their pre-union concatenation and
// a floor plane marker at z_join.
func (d *debugWriter) intermediates(res *regrid.Result) {
	d.write("body_only", res.Body)
	d.write("slab_only", res.Slab)
	if res.Body != nil && res.Slab != nil {
		d.write("pre_union", regrid.PreUnion(res.Body, res.Slab))
	}
	if res.Input != nil {
		d.write("floor_plane", FloorPlate(res.Input, res.ZJoin))
	}
}

// operands writes each mesh attached to a failed boolean.
func (d *debugWriter) operands(be *regrid.BooleanOperationError) {
	for _, o := range be.Operands {
		d.write(fmt.Sprintf("failed_%s_%s", be.Stage, o.Name), o.Mesh)
	}
}
