package driver

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

type Config struct {
	TestConfig

	CpuProfile string

	EngineType EngineType

	// For benchmarks
	NumUpdates int
	UpdateSize int

	engineTypeStr string

	FlagSet *flag.FlagSet
}

func (c *Config) AddPirFlags() *Config {
	c.FlagSet = flag.CommandLine
	c.FlagSet.IntVar(&c.NumRows, "numRows", 10000, "Num DB Rows")
	c.FlagSet.IntVar(&c.RowLen, "rowLen", 32, "Row length in bytes")
	c.FlagSet.Uint64Var(&c.Alpha, "alpha", 8, "Engine alpha parameter")
	c.FlagSet.Uint64Var(&c.Depth, "depth", 2, "Engine depth parameter")
	c.FlagSet.StringVar(&c.engineTypeStr, "engine", NonPrivate.String(),
		fmt.Sprintf("PIR engine: [%s]", strings.Join(EngineTypeStrings(), "|")))
	c.FlagSet.StringVar(&c.CpuProfile, "cpuprofile", "", "write cpu profile to `file`")
	return c
}

func (c *Config) AddBenchmarkFlags() *Config {
	c.FlagSet.IntVar(&c.NumUpdates, "numUpdates", 0, "number of grow steps (default: numRows/updateSize)")
	c.FlagSet.IntVar(&c.UpdateSize, "updateSize", 500, "number of rows added in each grow step")
	c.MeasureBandwidth = true
	return c
}

func (c *Config) Parse() *Config {
	if c.FlagSet.Parsed() {
		return c
	}
	if err := c.FlagSet.Parse(os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
	var err error
	c.EngineType, err = EngineTypeString(c.engineTypeStr)
	if err != nil {
		log.Fatalf("Bad engine type: %s\n", c.engineTypeStr)
	}
	if c.NumUpdates == 0 && c.UpdateSize > 0 {
		c.NumUpdates = c.NumRows / c.UpdateSize
	}
	return c
}

// Driver builds a driver for the configured engine and configures it.
func (c *Config) Driver() (*Driver, error) {
	c.Parse()
	d, err := NewDriver(c.EngineType)
	if err != nil {
		return nil, err
	}
	if err := d.Configure(c.TestConfig); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("%s/%s", c.EngineType, c.TestConfig)
}
