package main

import (
	"fmt"
	"os"

	"github.com/roomcast/roomcast-backend/internal/tools/loadgen"
)

func main() {
	if err := loadgen.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
