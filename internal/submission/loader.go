package submission

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/pkg/errors"
)

type FileStore interface {
	Download(ctx context.Context, key, dst string) error
}

// Loader materializes a queued request on disk: the source code is written
// as is and every test file is fetched from the store.
type Loader struct {
	store FileStore
}

func NewLoader(store FileStore) *Loader {
	return &Loader{store: store}
}

func (l *Loader) Load(ctx context.Context, req *models.SubmissionRequest, dir string) (*models.Submission, error) {
	if len(req.TestCases) == 0 {
		return nil, ErrInvalidCaseCount
	}
	if req.TimeLimit <= 0 || req.MemoryLimit <= 0 {
		return nil, errors.Errorf("invalid limits: time %d ms, memory %d KB", req.TimeLimit, req.MemoryLimit)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create submission dir")
	}

	source := filepath.Join(dir, "source")
	if err := os.WriteFile(source, []byte(req.Code), 0644); err != nil {
		return nil, errors.Wrap(err, "failed to write source")
	}
	sub := &models.Submission{
		Id:          req.Id,
		Language:    req.Language,
		SourcePath:  source,
		TimeLimit:   req.TimeLimit,
		MemoryLimit: req.MemoryLimit,
		TestCases:   make([]models.TestCase, 0, len(req.TestCases)),
	}
	for i, tc := range req.TestCases {
		num := strconv.Itoa(i + 1)
		input := filepath.Join(dir, num+".in")
		expected := filepath.Join(dir, num+".ans")
		if err := l.store.Download(ctx, tc.InputFile, input); err != nil {
			return nil, errors.Wrapf(err, "test case %d input", i+1)
		}
		if err := l.store.Download(ctx, tc.OutputFile, expected); err != nil {
			return nil, errors.Wrapf(err, "test case %d output", i+1)
		}
		sub.TestCases = append(sub.TestCases, models.TestCase{InputPath: input, ExpectedPath: expected})
	}
	return sub, nil
}
