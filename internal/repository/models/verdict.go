package models

import "time"

type VerdictKind int8

const (
	VerdictAccepted VerdictKind = iota
	VerdictWrongAnswer
	VerdictRuntimeError
	VerdictTimeLimitExceeded
	VerdictMemoryLimitExceeded
	VerdictCompileError
	// Judge-side failure, not a property of the submission.
	VerdictSystemError
)

// Verdict is the outcome of a single test case or of compilation.
// Diagnostic is only set for the kinds that carry text.
type Verdict struct {
	Kind       VerdictKind
	Diagnostic string
}

func Accepted() Verdict {
	return Verdict{Kind: VerdictAccepted}
}

func WrongAnswer(msg string) Verdict {
	return Verdict{Kind: VerdictWrongAnswer, Diagnostic: msg}
}

func RuntimeError(msg string) Verdict {
	return Verdict{Kind: VerdictRuntimeError, Diagnostic: msg}
}

func TimeLimitExceeded() Verdict {
	return Verdict{Kind: VerdictTimeLimitExceeded}
}

func MemoryLimitExceeded() Verdict {
	return Verdict{Kind: VerdictMemoryLimitExceeded}
}

func CompileError(diagnostics string) Verdict {
	return Verdict{Kind: VerdictCompileError, Diagnostic: diagnostics}
}

func SystemError(msg string) Verdict {
	return Verdict{Kind: VerdictSystemError, Diagnostic: msg}
}

func (k VerdictKind) String() string {
	switch k {
	case VerdictAccepted:
		return "Accepted"
	case VerdictWrongAnswer:
		return "WrongAnswer"
	case VerdictRuntimeError:
		return "RuntimeError"
	case VerdictTimeLimitExceeded:
		return "TimeLimitExceeded"
	case VerdictMemoryLimitExceeded:
		return "MemoryLimitExceeded"
	case VerdictCompileError:
		return "CompileError"
	case VerdictSystemError:
		return "SystemError"
	}
	return "Unknown"
}

// CompileCase is the case number used for a compilation failure.
const CompileCase = 0

type CaseResult struct {
	// 0 for compile failures, otherwise 1-based
	Case     int
	Verdict  Verdict
	Time     time.Duration
	MemoryKB int64
}
