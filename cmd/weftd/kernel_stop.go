package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlang/weft/internal/kernel"
)

var stopGracePeriod time.Duration

var kernelStopCmd = &cobra.Command{
	Use:   "stop <kernel-id>",
	Short: "send SIGTERM to a running kernel and wait for it to exit",
	Args:  cobra.ExactArgs(1),
	Run:   runKernelStop,
}

func init() {
	kernelStopCmd.Flags().DurationVar(&stopGracePeriod, "grace-period", 5*time.Second, "time to wait for the kernel to exit before reporting failure")
}

// runKernelStop implements spec.md §6's `kernel stop <id>`: read the PID out
// of the kernel's connection file, SIGTERM it, and poll until it's gone or
// the grace period elapses.
func runKernelStop(cmd *cobra.Command, args []string) {
	id := args[0]
	dir, err := kernelsDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weftd: %v\n", err)
		os.Exit(exitConfigError)
	}

	info, err := readConnectionInfo(filepath.Join(dir, id+".json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "weftd: kernel %q: %v\n", id, err)
		os.Exit(exitConfigError)
	}
	if info.PID == 0 {
		fmt.Fprintf(os.Stderr, "weftd: kernel %q: connection file has no pid\n", id)
		os.Exit(exitInternalError)
	}

	if err := syscall.Kill(info.PID, syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "weftd: signal kernel %q (pid %d): %v\n", id, info.PID, err)
		os.Exit(exitInternalError)
	}

	deadline := time.Now().Add(stopGracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(info.PID) {
			fmt.Printf("kernel %s stopped\n", id)
			os.Exit(exitClean)
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintf(os.Stderr, "weftd: kernel %q did not exit within %s\n", id, stopGracePeriod)
	os.Exit(exitInternalError)
}

func readConnectionInfo(path string) (kernel.ConnectionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return kernel.ConnectionInfo{}, err
	}
	var info kernel.ConnectionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return kernel.ConnectionInfo{}, err
	}
	return info, nil
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
