package main

import (
	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/merge-o-matic/mom/cmd"
	"go.uber.org/automaxprocs/maxprocs"
)

var (
	version      = "0.0.1"
	artifactArch = "linux_x86_64"
)

func main() {
	undo, _ := maxprocs.Set()
	defer undo()

	// Honour the container's memory limit.
	_, _ = memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	)

	cmd.Execute(version, artifactArch)
}
