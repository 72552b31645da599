package main

import (
	"github.com/robotalks/dali.go/pkg/cli/sh"
	"github.com/robotalks/dali.go/pkg/device/env"

	_ "github.com/robotalks/dali.go/pkg/cli/cmds/bus"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
