// Package submission turns external requests into validated submissions.
package submission

import (
	"strconv"
	"strings"

	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/pkg/errors"
)

var (
	ErrNotEnoughArguments = errors.New("not enough arguments")
	ErrInvalidCaseCount   = errors.New("test_case_number must be greater than 0")
	ErrNotEnoughCases     = errors.New("not enough test cases")
)

const (
	caseSeparator = "#"
	fixedArgs     = 6
)

// ParseArgs reads the command line layout
//
//	<id> <language> <source> <time_ms> <memory_kb> <count> <input#output>...
//
// where every test case names its input and expected output file joined by '#'.
func ParseArgs(args []string) (*models.Submission, error) {
	if len(args) < fixedArgs {
		return nil, ErrNotEnoughArguments
	}
	timeLimit, err := parsePositive(args[3], "time limit")
	if err != nil {
		return nil, err
	}
	memoryLimit, err := parsePositive(args[4], "memory limit")
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(args[5])
	if err != nil || count <= 0 {
		return nil, ErrInvalidCaseCount
	}
	cases := args[fixedArgs:]
	if len(cases) < count {
		return nil, ErrNotEnoughCases
	}

	sub := &models.Submission{
		Id:          args[0],
		Language:    args[1],
		SourcePath:  args[2],
		TimeLimit:   timeLimit,
		MemoryLimit: memoryLimit,
		TestCases:   make([]models.TestCase, 0, count),
	}
	for i, arg := range cases[:count] {
		input, expected, ok := strings.Cut(arg, caseSeparator)
		if !ok || input == "" || expected == "" {
			return nil, errors.Errorf("test case %d: expected <input>%s<output>, got %q", i+1, caseSeparator, arg)
		}
		sub.TestCases = append(sub.TestCases, models.TestCase{InputPath: input, ExpectedPath: expected})
	}
	return sub, nil
}

func parsePositive(s, name string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	if v <= 0 {
		return 0, errors.Errorf("%s must be greater than 0", name)
	}
	return v, nil
}
