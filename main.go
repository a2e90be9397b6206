package main

import (
	"github.com/tcadamson/recap.agdg.app/src/cli"
	_ "github.com/tcadamson/recap.agdg.app/src/hmns3"
	_ "github.com/tcadamson/recap.agdg.app/src/migration"
)

func main() {
	cli.Execute()
}
