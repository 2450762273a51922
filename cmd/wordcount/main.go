package main

import (
	"os"

	"github.com/nemanja-m/mrchain/examples/wordcount"
	"github.com/nemanja-m/mrchain/pkg/driver"
)

func main() {
	os.Exit(driver.Main(os.Args, wordcount.Chain()))
}
