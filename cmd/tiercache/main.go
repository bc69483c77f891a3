// Command tiercache populates and exercises the tiered cache from the
// command line.
//
//	tiercache warm  --bundle ./Resources      load every channel and print stats
//	tiercache bench --duration 10s            synthetic workload with /metrics
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
