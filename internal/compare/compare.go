package compare

import (
	"fmt"
	"strconv"

	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
)

// Modes accepted by Select.
const (
	ModeNumeric = "numeric"
	ModeText    = "text"
)

// Missing stands in for the absent side of a length mismatch.
const Missing = "<missing>"

// Source is a readable trace.
type Source = ports.TraceSource

// Result is the outcome of comparing two traces.
type Result struct {
	Match    bool
	Strategy string

	// Normalized projections, numeric strategy only.
	Reference domain.Trace
	Actual    domain.Trace

	// Raw lines after the header, textual strategy only.
	ReferenceLines []string
	ActualLines    []string

	// First difference, nil on a match.
	Divergence *domain.Divergence
}

// Err returns a *domain.ComparisonMismatch for a mismatch and nil otherwise.
func (r Result) Err() error {
	if r.Match {
		return nil
	}
	return &domain.ComparisonMismatch{Strategy: r.Strategy, Divergence: *r.Divergence}
}

// Strategy compares a reference source against an actual one. Errors are
// reserved for unreadable or unparsable sources; a mismatch is a Result.
type Strategy interface {
	Name() string
	Compare(ref, act Source) (Result, error)
}

// Select returns the strategy for mode.
func Select(mode string) (Strategy, error) {
	switch mode {
	case ModeNumeric, "":
		return Numeric{}, nil
	case ModeText:
		return Textual{}, nil
	default:
		return nil, fmt.Errorf("unknown compare mode %q (want %s or %s)", mode, ModeNumeric, ModeText)
	}
}

// Numeric compares parsed traces after offset normalization.
type Numeric struct{}

// Name returns "numeric".
func (Numeric) Name() string { return ModeNumeric }

// Compare parses both sources, normalizes them independently and compares
// every field.
func (n Numeric) Compare(ref, act Source) (Result, error) {
	rt, err := load(ref)
	if err != nil {
		return Result{}, err
	}
	at, err := load(act)
	if err != nil {
		return Result{}, err
	}
	res := Result{Strategy: n.Name(), Reference: Normalize(rt), Actual: Normalize(at)}
	res.Match, res.Divergence = Equal(res.Reference, res.Actual)
	return res, nil
}

func load(src Source) (domain.Trace, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", src.Name(), err)
	}
	defer rc.Close()
	t, err := ParseTrace(rc)
	if err != nil {
		return nil, fmt.Errorf("parse trace %s: %w", src.Name(), err)
	}
	return t, nil
}

// Normalize returns a copy of t with row 1's timestamp subtracted from rows
// 1..n. Row 0 is left as is. Normalizing twice changes nothing.
func Normalize(t domain.Trace) domain.Trace {
	out := t.Clone()
	if len(out) < 2 {
		return out
	}
	base := out[1].Timestamp
	for i := 1; i < len(out); i++ {
		out[i].Timestamp -= base
	}
	return out
}

// Equal reports whether ref and act have the same rows, and if not, where
// they first differ.
func Equal(ref, act domain.Trace) (bool, *domain.Divergence) {
	n := min(len(ref), len(act))
	for i := 0; i < n; i++ {
		rf, af := ref[i].Fields(), act[i].Fields()
		w := min(len(rf), len(af))
		for c := 0; c < w; c++ {
			if rf[c] != af[c] {
				return false, &domain.Divergence{
					Index:     i,
					Column:    c,
					Reference: strconv.FormatInt(rf[c], 10),
					Actual:    strconv.FormatInt(af[c], 10),
				}
			}
		}
		if len(rf) != len(af) {
			d := &domain.Divergence{Index: i, Column: w, Reference: Missing, Actual: Missing}
			if len(rf) > w {
				d.Reference = strconv.FormatInt(rf[w], 10)
			} else {
				d.Actual = strconv.FormatInt(af[w], 10)
			}
			return false, d
		}
	}
	if len(ref) == len(act) {
		return true, nil
	}
	d := &domain.Divergence{Index: n, Column: -1, Reference: Missing, Actual: Missing}
	if len(ref) > n {
		d.Reference = ref[n].String()
	} else {
		d.Actual = act[n].String()
	}
	return false, d
}

// Textual compares raw lines after the header.
type Textual struct{}

// Name returns "text".
func (Textual) Name() string { return ModeText }

// Compare reads both sources and compares them line by line.
func (tx Textual) Compare(ref, act Source) (Result, error) {
	rl, err := lines(ref)
	if err != nil {
		return Result{}, err
	}
	al, err := lines(act)
	if err != nil {
		return Result{}, err
	}
	res := Result{Strategy: tx.Name(), ReferenceLines: rl, ActualLines: al}
	res.Match, res.Divergence = equalLines(rl, al)
	return res, nil
}

func lines(src Source) ([]string, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", src.Name(), err)
	}
	defer rc.Close()
	l, err := Lines(rc)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", src.Name(), err)
	}
	return l, nil
}

func equalLines(ref, act []string) (bool, *domain.Divergence) {
	n := min(len(ref), len(act))
	for i := 0; i < n; i++ {
		if ref[i] != act[i] {
			return false, &domain.Divergence{Index: i, Column: -1, Reference: ref[i], Actual: act[i]}
		}
	}
	if len(ref) == len(act) {
		return true, nil
	}
	d := &domain.Divergence{Index: n, Column: -1, Reference: Missing, Actual: Missing}
	if len(ref) > n {
		d.Reference = ref[n]
	} else {
		d.Actual = act[n]
	}
	return false, d
}
