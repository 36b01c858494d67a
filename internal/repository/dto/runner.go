package dto

import (
	"time"
)

type CompiledArtifact struct {
	Path     string
	Language string
}

type RunRequest struct {
	ArtifactPath string
	InputPath    string
	// fresh file, created by the executor
	OutputPath string
	ErrorPath  string
	TimeLimit  time.Duration
	// В килобайтах
	MemoryLimit int64
	// В байтах, 0 - без ограничения
	MaxOutputSize int64
}

type ExecutionStatus int8

const (
	ExecutionCompleted ExecutionStatus = iota
	ExecutionTimeLimitExceeded
	ExecutionMemoryLimitExceeded
	ExecutionRuntimeError
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionCompleted:
		return "completed"
	case ExecutionTimeLimitExceeded:
		return "time limit exceeded"
	case ExecutionMemoryLimitExceeded:
		return "memory limit exceeded"
	case ExecutionRuntimeError:
		return "runtime error"
	}
	return "unknown"
}

type ExecutionOutcome struct {
	Status     ExecutionStatus
	ExitStatus int
	Time       time.Duration
	MemoryKB   int64
	OutputPath string
	// exit code or signal plus captured stderr, runtime errors only
	Diagnostic string
}
