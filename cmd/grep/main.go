package main

import (
	"fmt"
	"os"

	"github.com/nemanja-m/mrchain/examples/grep"
	"github.com/nemanja-m/mrchain/pkg/driver"
)

// The pattern is read from the environment so that workers, which only get
// "MAP Grep" or "REDUCE Grep" as arguments, build the same stage. Pass it to
// them with "-e '-cmdenv MRCHAIN_GREP_PATTERN=...'".
func main() {
	pattern := os.Getenv("MRCHAIN_GREP_PATTERN")
	if pattern == "" {
		pattern = grep.DefaultPattern
	}

	root, err := grep.Chain(pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid pattern %q: %v\n", pattern, err)
		os.Exit(driver.ExitUsage)
	}
	os.Exit(driver.Main(os.Args, root))
}
