package process

import (
	"strings"
)

// Placeholders understood by ExpandArgs.
const (
	PlaceholderCSV   = "{csv}"
	PlaceholderFST   = "{fst}"
	PlaceholderPort  = "{port}"
	PlaceholderAddr  = "{addr}"
	PlaceholderBoard = "{board}"
)

// Vars are the values substituted into simulator arguments.
type Vars struct {
	CSV   string
	FST   string
	Port  string
	Addr  string
	Board string
}

// ExpandArgs substitutes placeholders in args. With no configured args the
// simulator's own convention applies: "csv <csv>", or "both <csv> <fst>"
// when an FST dump path is set.
func ExpandArgs(args []string, v Vars) []string {
	if len(args) == 0 {
		return DefaultArgs(v)
	}
	r := strings.NewReplacer(
		PlaceholderCSV, v.CSV,
		PlaceholderFST, v.FST,
		PlaceholderPort, v.Port,
		PlaceholderAddr, v.Addr,
		PlaceholderBoard, v.Board,
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// DefaultArgs returns the simulator's standard trace-output arguments.
func DefaultArgs(v Vars) []string {
	if v.FST != "" {
		return []string{"both", v.CSV, v.FST}
	}
	return []string{"csv", v.CSV}
}
