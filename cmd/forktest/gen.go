package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"fastcat.org/go/forktest/gen"
)

func genCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen [dir...]",
		Short: "write wrapper declarations for isolated test bodies",
		Long: "Scans each directory's _test.go files for isolated test and benchmark " +
			"bodies and writes one generated wrapper file per package. " +
			"With no arguments the current directory is scanned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			for _, dir := range args {
				cfg, err := gen.LoadConfig(dir)
				if err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				bodies, err := gen.Generate(dir, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				if len(bodies) == 0 {
					log.Printf("%s: no isolated bodies", dir)
				} else {
					log.Printf("%s: wrote %s with %d wrapper(s)", dir, cfg.Output, len(bodies))
				}
			}
			return nil
		},
	}
}
