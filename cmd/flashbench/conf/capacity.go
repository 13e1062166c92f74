package conf

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

//Capacity is a count/size in bytes, its primary purpose is to allow the pflag
// package to parse human IEC values like "10 MiB"
type Capacity int64

var _ pflag.Value = (*Capacity)(nil)

//String returns capacity in human readable IEC units, see: pflag.Value interface
func (c *Capacity) String() string {
	return humanize.IBytes(uint64(*c))
}

//Set is used by the pflag package, see: pflag.Value interface
func (c *Capacity) Set(str string) error {
	val, err := humanize.ParseBytes(str)
	if err != nil {
		return fmt.Errorf("Parsing %q failed: %w", str, err)
	}

	*c = Capacity(val)
	return nil
}

//Type is used by the pflag package in usage output, see: pflag.Value interface
func (c *Capacity) Type() string { return "size" }

//Analog to methods like pflag.DurationVar for use in parsing capacity command-line args
func flagCapacityVar(fs *pflag.FlagSet, p *Capacity, name string, value Capacity, usage string) {
	*p = value
	fs.Var(p, name, usage)
}
