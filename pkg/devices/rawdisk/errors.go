package rawdisk

import "github.com/tarndt/flashbench/pkg/util/consterr"

const errDropUnsupported = consterr.ConstErr("Dropping cached pages is not supported on this platform")
