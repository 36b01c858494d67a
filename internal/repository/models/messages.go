package models

// SubmissionRequest is the queue message describing a submission whose
// source and test data still have to be fetched.
type SubmissionRequest struct {
	Id          string            `json:"id"`
	Language    string            `json:"language"`
	Code        string            `json:"code"`
	TimeLimit   int64             `json:"time_limit"`
	MemoryLimit int64             `json:"memory_limit"`
	TestCases   []TestCaseRequest `json:"test_cases"`
}

type TestCaseRequest struct {
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
}

// ResultMessage is the wire form of a CaseResult.
type ResultMessage struct {
	Id     string `json:"id"`
	Case   int    `json:"case"`
	Result string `json:"result"`
	// milliseconds
	Time int64 `json:"time"`
	// kilobytes
	Memory int64 `json:"memory"`
}
