// Package flagx holds helpers for parsing a subset of os.Args, so that each
// configuration layer can read its own flags without tripping over flags
// that belong to another layer.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the arguments from args that are listed in allowedFlags,
// together with their values. Both "-c conf.json" and "-c=conf.json" forms
// are understood. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			// a following token that is not itself a flag is the value
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JsonConfigFlags returns the JSON config path given with -c or -config,
// or "" when neither is present.
func JsonConfigFlags() string {
	return stringFlag([]string{"c", "config"}, "Path to config file")
}

// EnvFileFlags returns the dotenv file path given with -envfile, or "" when
// it is absent.
func EnvFileFlags() string {
	return stringFlag([]string{"envfile"}, "Path to .env file")
}

func stringFlag(names []string, usage string) string {
	var value string

	allowed := make([]string, 0, len(names))
	for _, n := range names {
		allowed = append(allowed, "-"+n)
	}
	args := FilterArgs(os.Args[1:], allowed)

	fs := flag.NewFlagSet(names[0], flag.ContinueOnError)
	for _, n := range names {
		fs.StringVar(&value, n, "", usage)
	}
	_ = fs.Parse(args)

	return value
}
