package flag

import (
	"flag"
)

func Parse() {
	flag.Parse()
}

// Visit calls fn for every flag set on the command line.
func Visit(fn func(name, value string)) {
	flag.Visit(func(f *flag.Flag) { fn(f.Name, f.Value.String()) })
}

func StringVar(p *string, name, value, usage string) {
	flag.StringVar(p, name, value, usage)
}

func BoolVar(p *bool, name string, value bool, usage string) {
	flag.BoolVar(p, name, value, usage)
}
