// AngelaMos | 2026
// main.go

package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("clinicd failed", "error", err)
		os.Exit(1)
	}
}
