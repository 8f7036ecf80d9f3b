// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package main

import (
	"fmt"
	"log"

	"github.com/docopt/docopt-go"
	"github.com/fatih/color"
	"github.com/goshuirc/jsonrelay/lib"
)

var cbCyan = color.New(color.Bold, color.FgHiCyan).SprintfFunc()

func main() {
	usage := `jsonrelay.

jsonrelay is a bidirectional IRC relay that can transparently convert either
leg of a relayed connection to and from a JSON representation, triggered by
the in-band STARTJSON signal.

Usage:
	jsonrelay start [--conf <filename>]
	jsonrelay -h | --help
	jsonrelay --version

Options:
	--conf <filename>  Configuration file to use [default: jsonrelay.yaml].
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.Parse(usage, nil, true, jsonrelay.Ver, false)

	if arguments["start"].(bool) {
		configfile := arguments["--conf"].(string)
		config, err := jsonrelay.LoadConfig(configfile)
		if err != nil {
			log.Fatal("Config file did not load successfully:", err.Error())
		}

		fmt.Println("Starting", cbCyan("jsonrelay"))

		manager := jsonrelay.NewManager(config)
		err = manager.Run()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}
