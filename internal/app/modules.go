package app

import (
	"github.com/specialistvlad/vxgrid/internal/kernels/ext"
	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/targets/cmodel"
	"github.com/specialistvlad/vxgrid/internal/targets/device"
)

// coreTargets lists the target and kernel modules compiled into the vxgrid
// binary.
var coreTargets = []func(*target.Catalog){
	cmodel.Register,
	device.Register,
	ext.Register,
}

func newCatalog(register ...func(*target.Catalog)) *target.Catalog {
	if len(register) == 0 {
		register = coreTargets
	}
	c := target.NewCatalog()
	for _, r := range register {
		r(c)
	}
	return c
}
