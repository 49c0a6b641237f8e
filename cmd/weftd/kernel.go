package main

import "github.com/spf13/cobra"

var kernelCmd = &cobra.Command{
	Use:   "kernel",
	Short: "start, stop, and list weft kernels",
}

func init() {
	kernelCmd.AddCommand(kernelStartCmd)
	kernelCmd.AddCommand(kernelStopCmd)
	kernelCmd.AddCommand(kernelListCmd)
}
