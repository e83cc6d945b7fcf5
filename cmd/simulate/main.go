// Command simulate drives the cluster simulator from the command line: it
// reads a trace file, wires up a pkg/simulation.Simulation with the
// requested autoscalers enabled, runs it to completion (or to a fixed
// point in simulated time), and prints the monitoring statistics gathered
// along the way.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
