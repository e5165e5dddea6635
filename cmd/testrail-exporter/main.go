/*
2025 Helvethink <technical@helvethink.ch>
*/
package main

import (
	"os"

	"github.com/helvethink/testrail-exporter/internal/cli"
)

var version = "devel"

func main() {
	cli.Run(version, os.Args)
}
