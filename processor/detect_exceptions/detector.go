package detectexceptions

import (
	"fmt"
	"regexp"

	"github.com/xperimental/vector/errors"
)

// ruleTarget is a compiled transition out of a state.
type ruleTarget struct {
	regex *regexp.Regexp
	to    state
}

// stateMachine maps each state to its outgoing transitions in rule-table
// order. First matching transition wins.
type stateMachine map[state][]ruleTarget

// newStateMachine compiles the rule tables for the given languages into a
// single merged state machine. An empty language list means all languages.
func newStateMachine(langs []Language) (stateMachine, error) {
	if len(langs) == 0 {
		langs = []Language{LanguageAll}
	}

	sm := make(stateMachine)
	for _, lang := range langs {
		rules, ok := rulesForLanguage(lang)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("unsupported language %q", lang),
				"ExceptionDetector", "newStateMachine", "resolve language rules")
		}
		for _, r := range rules {
			regex, err := regexp.Compile(r.pattern)
			if err != nil {
				return nil, errors.WrapInvalid(err, "ExceptionDetector", "newStateMachine",
					fmt.Sprintf("compile pattern %q", r.pattern))
			}
			target := ruleTarget{regex: regex, to: r.to}
			for _, from := range r.from {
				sm[from] = append(sm[from], target)
			}
		}
	}

	return sm, nil
}

// detectionStatus classifies one line relative to the trace in progress.
type detectionStatus int

const (
	noTrace detectionStatus = iota
	startTrace
	insideTrace
	endTrace
)

func (s detectionStatus) String() string {
	switch s {
	case noTrace:
		return "no_trace"
	case startTrace:
		return "start_trace"
	case insideTrace:
		return "inside_trace"
	case endTrace:
		return "end_trace"
	default:
		return "unknown"
	}
}

// exceptionDetector walks the state machine one line at a time.
type exceptionDetector struct {
	stateMachine stateMachine
	currentState state
}

func newExceptionDetector(langs []Language) (*exceptionDetector, error) {
	sm, err := newStateMachine(langs)
	if err != nil {
		return nil, err
	}
	return &exceptionDetector{
		stateMachine: sm,
		currentState: stateStart,
	}, nil
}

// update classifies a line. A line that does not continue the current trace
// gets a second transition attempt from the start state, so a line can end
// one trace and begin another in the same call without looping further.
func (d *exceptionDetector) update(line string) detectionStatus {
	traceSeenBefore := d.transition(line)
	if !traceSeenBefore {
		d.transition(line)
	}
	traceSeenAfter := d.currentState != stateStart

	switch {
	case traceSeenBefore && traceSeenAfter:
		return insideTrace
	case traceSeenBefore && !traceSeenAfter:
		return endTrace
	case !traceSeenBefore && traceSeenAfter:
		return startTrace
	default:
		return noTrace
	}
}

// transition attempts one step from the current state. On no match the
// detector falls back to the start state and reports false.
func (d *exceptionDetector) transition(line string) bool {
	for _, target := range d.stateMachine[d.currentState] {
		if target.regex.MatchString(line) {
			d.currentState = target.to
			return true
		}
	}
	d.currentState = stateStart
	return false
}

func (d *exceptionDetector) reset() {
	d.currentState = stateStart
}
