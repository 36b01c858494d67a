package models

type TestCase struct {
	InputPath    string
	ExpectedPath string
}

// Submission is a validated judging request. The pipeline does not re-check it.
type Submission struct {
	Id         string
	Language   string
	SourcePath string
	// milliseconds
	TimeLimit int64
	// kilobytes
	MemoryLimit int64
	TestCases   []TestCase
}
