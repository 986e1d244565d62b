package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "insight"}

	root.AddCommand(serveCMD(), migrateCMD(), researchCMD(), resumeCMD())
	_ = root.Execute()
}
