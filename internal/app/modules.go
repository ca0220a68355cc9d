package app

import (
	"github.com/vk/iscadgo/internal/registry"
	"github.com/vk/iscadgo/modules/box"
	"github.com/vk/iscadgo/modules/compound"
	"github.com/vk/iscadgo/modules/importshape"
	"github.com/vk/iscadgo/modules/transform"
)

// coreModules is the definitive list of all feature types that are compiled
// into the iscad binary.
var coreModules = []registry.Module{
	&box.Module{},
	&compound.Module{},
	&transform.Module{},
	&importshape.Module{},
}
