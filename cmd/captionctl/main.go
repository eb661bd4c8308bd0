package main

import (
	"fmt"
	"os"

	"captiond/internal/ctl"
)

func main() {
	if err := ctl.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "captionctl:", err)
		os.Exit(1)
	}
}
