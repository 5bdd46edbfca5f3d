package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fastcat.org/go/forktest/gen"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir...]",
		Short: "show isolated test bodies and the wrappers they would get",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Directory", "Package", "Body", "Wrapper", "File"})
			total := 0
			for _, dir := range args {
				cfg, err := gen.LoadConfig(dir)
				if err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				bodies, err := gen.Scan(dir, cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				for _, b := range bodies {
					tw.AppendRow(table.Row{dir, b.Package, b.Func, b.Wrapper, b.File})
					total++
				}
			}
			if total == 0 {
				fmt.Println("no isolated bodies found")
				return nil
			}
			tw.Render()
			return nil
		},
	}
}
