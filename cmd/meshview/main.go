// Command meshview loads a model and its texture and spins it in a window.
package main

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/meshes/config"
)

func main() {
	runtime.LockOSThread()

	cfg, err := config.ParseArgs(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		fmt.Print(config.Usage)
		return
	} else if err != nil {
		fmt.Printf("\n%v\n", err)
		fmt.Println("\nUse --help or -h for option list.")
		os.Exit(1)
	}

	err = cfg.Validate()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	viewer := &Viewer{config: cfg}
	err = viewer.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
