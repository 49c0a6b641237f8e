package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var kernelListCmd = &cobra.Command{
	Use:   "list",
	Short: "list known kernels and whether their process is still alive",
	Run:   runKernelList,
}

// runKernelList implements spec.md §6's `kernel list`: enumerate connection
// files under the kernels directory and report liveness by PID.
func runKernelList(cmd *cobra.Command, args []string) {
	dir, err := kernelsDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weftd: %v\n", err)
		os.Exit(exitConfigError)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no kernels found")
			os.Exit(exitClean)
		}
		fmt.Fprintf(os.Stderr, "weftd: %v\n", err)
		os.Exit(exitInternalError)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KERNEL ID\tPID\tSTATUS\tTRANSPORT\tSHELL PORT")
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		info, err := readConnectionInfo(filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Fprintf(w, "%s\t?\tunreadable\t-\t-\n", id)
			continue
		}
		status := "dead"
		if info.PID != 0 && processAlive(info.PID) {
			status = "running"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", id, info.PID, status, info.Transport, info.ShellPort)
	}
	w.Flush()
	os.Exit(exitClean)
}
