package isolate

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cutekitek/rankode-judge/pkg/utils"
	"github.com/pkg/errors"
)

type exitStatus int

const (
	exitStatusOk exitStatus = iota
	exitStatusTimeout
	exitStatusOutOfMemory
	exitStatusRuntimeError
	exitStatusSignal
	exitStatusInternal
)

type metaFile struct {
	path string
}

type metaData struct {
	CPUTime  time.Duration
	WallTime time.Duration
	// kilobytes, cgroup peak when available
	Memory     int64
	MaxRSS     int64
	ExitCode   int
	ExitSignal int
	Status     exitStatus
	Message    string
}

func (m metaFile) Collect() (*metaData, error) {
	file, err := os.Open(m.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open meta file")
	}
	defer file.Close()
	return parseMeta(file)
}

func (m metaFile) Remove() {
	os.Remove(m.path)
}

func parseMeta(r io.Reader) (*metaData, error) {
	meta := &metaData{}
	oomKilled := false
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.Wrapf(ErrInvalidMeta, "line %q", line)
		}
		var err error
		switch key {
		case "cg-mem":
			meta.Memory, err = utils.ParseKB(value)
		case "max-rss":
			meta.MaxRSS, err = utils.ParseKB(value)
		case "exitcode":
			meta.ExitCode, err = utils.ParseInt(value)
		case "exitsig":
			meta.ExitSignal, err = utils.ParseInt(value)
		case "time":
			meta.CPUTime, err = utils.ParseSeconds(value)
		case "time-wall":
			meta.WallTime, err = utils.ParseSeconds(value)
		case "message":
			meta.Message = value
		case "cg-oom-killed":
			oomKilled = true
		case "status":
			switch value {
			case "RE":
				meta.Status = exitStatusRuntimeError
			case "SG":
				meta.Status = exitStatusSignal
			case "TO":
				meta.Status = exitStatusTimeout
			case "XX":
				meta.Status = exitStatusInternal
			}
		}
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidMeta, "%s: %v", key, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read meta file")
	}
	if oomKilled && meta.Status != exitStatusInternal {
		meta.Status = exitStatusOutOfMemory
	}
	if meta.Memory == 0 {
		meta.Memory = meta.MaxRSS
	}
	return meta, nil
}
