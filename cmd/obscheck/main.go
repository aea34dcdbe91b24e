package main

import (
	"fmt"
	"os"

	"github.com/roomcast/roomcast-backend/internal/tools/obscheck"
)

func main() {
	if err := obscheck.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
