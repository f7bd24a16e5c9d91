package main

import "os"

// version can be set during build with -ldflags
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}
