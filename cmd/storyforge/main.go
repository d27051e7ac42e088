package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/storyforge/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	go autorestart.RestartOnChange()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "storyforge:", err)
		os.Exit(1)
	}
}
