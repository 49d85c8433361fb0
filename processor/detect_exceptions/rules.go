package detectexceptions

// Language selects which rule tables the detector loads.
type Language string

// Supported languages. Javascript, Js and Csharp share the Java rules
// because their stack trace formats are close enough for the same patterns.
const (
	LanguageJava       Language = "Java"
	LanguageJavascript Language = "Javascript"
	LanguageJs         Language = "Js"
	LanguageCsharp     Language = "Csharp"
	LanguagePython     Language = "Python"
	LanguagePy         Language = "Py"
	LanguagePhp        Language = "Php"
	LanguageGo         Language = "Go"
	LanguageRuby       Language = "Ruby"
	LanguageRb         Language = "Rb"
	LanguageDart       Language = "Dart"
	LanguageAll        Language = "All"
)

// state is a node in the per-language trace detection state machine.
// stateStart doubles as the "not inside a trace" state for every language.
type state int

const (
	stateStart state = iota

	// Java (also Javascript and C#)
	stateJavaStartException
	stateJavaAfterException
	stateJava

	// Python
	statePython
	statePythonCode

	// PHP
	statePhpStackBegin
	statePhpStackFrames

	// Go
	stateGoAfterPanic
	stateGoGoRoutine
	stateGoAfterSignal
	stateGoFrame1
	stateGoFrame2

	// Ruby
	stateRubyBeforeRailsTrace
	stateRuby

	// Dart
	stateDartExc
	stateDartStack
	stateDartTypeErr1
	stateDartTypeErr2
	stateDartTypeErr3
	stateDartTypeErr4
	stateDartFormatErr1
	stateDartFormatErr2
	stateDartFormatErr3
	stateDartMethodErr1
	stateDartMethodErr2
	stateDartMethodErr3
)

// rule is one transition: when the current state is any of from and the line
// matches pattern, the detector moves to to.
type rule struct {
	from    []state
	pattern string
	to      state
}

func javaRules() []rule {
	return []rule{
		{
			from:    []state{stateStart, stateJavaStartException},
			pattern: `(?:(Exception|Error|Throwable|V8 errors stack trace)[:\r\n]|java[x]?\..*(Exception|Error))`,
			to:      stateJavaAfterException,
		},
		{
			from:    []state{stateStart, stateJavaStartException},
			pattern: `Error\s*$|V8 errors stack trace\s*$`,
			to:      stateJavaAfterException,
		},
		{
			from:    []state{stateJavaAfterException},
			pattern: `^[\t ]*nested exception is:[\t ]*`,
			to:      stateJavaStartException,
		},
		{
			from:    []state{stateJavaAfterException},
			pattern: `^[\r\n]*$`,
			to:      stateJavaAfterException,
		},
		{
			from:    []state{stateJavaAfterException, stateJava},
			pattern: "^[\t ]+(?:eval )?at ",
			to:      stateJava,
		},
		{
			// C# nested exception.
			from:    []state{stateJavaAfterException, stateJava},
			pattern: `^[\t ]+--- End of inner exception stack trace ---$`,
			to:      stateJava,
		},
		{
			// C# exception from async code.
			from:    []state{stateJavaAfterException, stateJava},
			pattern: `^--- End of stack trace from previous location where exception was thrown ---$`,
			to:      stateJava,
		},
		{
			from:    []state{stateJavaAfterException, stateJava},
			pattern: `^[\t ]*(?:Caused by|Suppressed):`,
			to:      stateJavaAfterException,
		},
		{
			from:    []state{stateJavaAfterException, stateJava},
			pattern: `^[\t ]*... \d+ (?:more|common frames omitted)`,
			to:      stateJava,
		},
	}
}

func pythonRules() []rule {
	return []rule{
		{
			from:    []state{stateStart},
			pattern: `^Traceback \(most recent call last\):$`,
			to:      statePython,
		},
		{
			from:    []state{statePython},
			pattern: `^[\t ]+File `,
			to:      statePythonCode,
		},
		{
			from:    []state{statePythonCode},
			pattern: `[^\t ]`,
			to:      statePython,
		},
		{
			from:    []state{statePython},
			pattern: `^(?:[^\s.():]+\.)*[^\s.():]+:`,
			to:      stateStart,
		},
	}
}

func phpRules() []rule {
	return []rule{
		{
			from:    []state{stateStart},
			pattern: `(?:PHP\s(?:Notice|Parse\serror|Fatal\serror|Warning):)|(?:exception\s'[^']+'\swith\smessage\s')`,
			to:      statePhpStackBegin,
		},
		{
			from:    []state{statePhpStackBegin},
			pattern: `^Stack trace:`,
			to:      statePhpStackFrames,
		},
		{
			from:    []state{statePhpStackFrames},
			pattern: `^#\d`,
			to:      statePhpStackFrames,
		},
		{
			from:    []state{statePhpStackFrames},
			pattern: `^\s+thrown in `,
			to:      stateStart,
		},
	}
}

func goRules() []rule {
	return []rule{
		{
			from:    []state{stateStart},
			pattern: `\bpanic: `,
			to:      stateGoAfterPanic,
		},
		{
			from:    []state{stateStart},
			pattern: `http: panic serving`,
			to:      stateGoGoRoutine,
		},
		{
			from:    []state{stateGoAfterPanic},
			pattern: `^$`,
			to:      stateGoGoRoutine,
		},
		{
			from:    []state{stateGoAfterPanic, stateGoAfterSignal, stateGoFrame1},
			pattern: `^$`,
			to:      stateGoGoRoutine,
		},
		{
			from:    []state{stateGoAfterPanic},
			pattern: `^\[signal `,
			to:      stateGoAfterSignal,
		},
		{
			from:    []state{stateGoGoRoutine},
			pattern: `^goroutine \d+ \[[^\]]+\]:$`,
			to:      stateGoFrame1,
		},
		{
			from:    []state{stateGoFrame1},
			pattern: `^(?:[^\s.:]+\.)*[^\s.():]+\(|^created by `,
			to:      stateGoFrame2,
		},
		{
			from:    []state{stateGoFrame2},
			pattern: `^\s`,
			to:      stateGoFrame1,
		},
	}
}

func rubyRules() []rule {
	return []rule{
		{
			from:    []state{stateStart},
			pattern: `Error \(.*\):$`,
			to:      stateRubyBeforeRailsTrace,
		},
		{
			from:    []state{stateRubyBeforeRailsTrace},
			pattern: `^  $`,
			to:      stateRuby,
		},
		{
			from:    []state{stateRubyBeforeRailsTrace},
			pattern: "^[\t ]+.*?\\.rb:\\d+:in `",
			to:      stateRuby,
		},
		{
			from:    []state{stateRuby},
			pattern: "^[\t ]+.*?\\.rb:\\d+:in `",
			to:      stateRuby,
		},
	}
}

func dartRules() []rule {
	return []rule{
		{from: []state{stateStart}, pattern: `^Unhandled exception:$`, to: stateDartExc},
		{from: []state{stateDartExc}, pattern: `^Instance of`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Exception`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Bad state`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^IntegerDivisionByZeroException`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Invalid argument`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^RangeError`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Assertion failed`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Cannot instantiate`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Reading static variable`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^UnimplementedError`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Unsupported operation`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Concurrent modification`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Out of Memory`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^Stack Overflow`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^'.+?':.+?$`, to: stateDartTypeErr1},
		{from: []state{stateDartTypeErr1}, pattern: `^#\d+\s+.+?\(.+?\)$`, to: stateDartStack},
		{from: []state{stateDartTypeErr1}, pattern: `^.+?$`, to: stateDartTypeErr2},
		{from: []state{stateDartTypeErr2}, pattern: `^.*?\^.*?$`, to: stateDartTypeErr3},
		{from: []state{stateDartTypeErr3}, pattern: `^$`, to: stateDartTypeErr4},
		{from: []state{stateDartTypeErr4}, pattern: `^$`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^FormatException`, to: stateDartFormatErr1},
		{from: []state{stateDartFormatErr1}, pattern: `^#\d+\s+.+?\(.+?\)$`, to: stateDartStack},
		{from: []state{stateDartFormatErr1}, pattern: `^.`, to: stateDartFormatErr2},
		{from: []state{stateDartFormatErr2}, pattern: `^.*?\^`, to: stateDartFormatErr3},
		{from: []state{stateDartFormatErr3}, pattern: `^$`, to: stateDartStack},
		{from: []state{stateDartExc}, pattern: `^NoSuchMethodError:`, to: stateDartMethodErr1},
		{from: []state{stateDartMethodErr1}, pattern: `^Receiver:`, to: stateDartMethodErr2},
		{from: []state{stateDartMethodErr2}, pattern: `^Tried calling:`, to: stateDartMethodErr3},
		{from: []state{stateDartMethodErr3}, pattern: `^Found:`, to: stateDartStack},
		{from: []state{stateDartMethodErr3}, pattern: `^#\d+\s+.+?\(.+?\)$`, to: stateDartStack},
		{from: []state{stateDartStack}, pattern: `^#\d+\s+.+?\(.+?\)$`, to: stateDartStack},
		{from: []state{stateDartStack}, pattern: `^<asynchronous suspension>$`, to: stateDartStack},
	}
}

func allRules() []rule {
	var rules []rule
	rules = append(rules, javaRules()...)
	rules = append(rules, pythonRules()...)
	rules = append(rules, phpRules()...)
	rules = append(rules, goRules()...)
	rules = append(rules, rubyRules()...)
	rules = append(rules, dartRules()...)
	return rules
}

// rulesForLanguage returns the rule table for a language, or false when the
// language is not supported.
func rulesForLanguage(lang Language) ([]rule, bool) {
	switch lang {
	case LanguageJava, LanguageJavascript, LanguageJs, LanguageCsharp:
		return javaRules(), true
	case LanguagePython, LanguagePy:
		return pythonRules(), true
	case LanguagePhp:
		return phpRules(), true
	case LanguageGo:
		return goRules(), true
	case LanguageRuby, LanguageRb:
		return rubyRules(), true
	case LanguageDart:
		return dartRules(), true
	case LanguageAll:
		return allRules(), true
	default:
		return nil, false
	}
}
