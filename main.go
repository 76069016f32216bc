package main

import (
	"github.com/tpcware/memgrid/cmd"
)

func main() {
	cmd.Execute()
}
