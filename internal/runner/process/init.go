package process

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/pkg/errors"
)

const (
	initArg = "__rankode_exec_init__"
	// exit code of the shim when it fails before exec
	initFailureCode = 126
)

// Init turns the current process into the exec shim when it was started by
// ProcessRunner: it applies the resource limits and replaces itself with the
// judged program. Call it first thing in main and in TestMain; in any other
// process it returns immediately.
func Init() {
	if len(os.Args) < 5 || os.Args[1] != initArg {
		return
	}
	limits, err := decodeRLimits(os.Args[2])
	if err != nil {
		initFail(err)
	}
	cred, err := decodeCredential(os.Args[3])
	if err != nil {
		initFail(err)
	}
	// syscall rather than unix: the runtime restores its saved NOFILE limit on
	// exec unless the change went through syscall.Setrlimit
	for _, l := range limits {
		if err := syscall.Setrlimit(l.Res, &l.Rlim); err != nil {
			initFail(errors.Wrapf(err, "setrlimit(%d)", l.Res))
		}
	}
	if cred != nil {
		if err := dropPrivileges(cred); err != nil {
			initFail(err)
		}
	}
	path := os.Args[4]
	err = syscall.Exec(path, os.Args[4:], os.Environ())
	initFail(errors.Wrapf(err, "exec %s", path))
}

func initFail(err error) {
	fmt.Fprintf(os.Stderr, "exec init: %v\n", err)
	os.Exit(initFailureCode)
}

// dropPrivileges switches every thread to cred, supplementary groups first
// while the shim is still allowed to change them.
func dropPrivileges(cred *syscall.Credential) error {
	if err := syscall.Setgroups([]int{}); err != nil {
		return errors.Wrap(err, "setgroups")
	}
	if err := syscall.Setgid(int(cred.Gid)); err != nil {
		return errors.Wrapf(err, "setgid(%d)", cred.Gid)
	}
	if err := syscall.Setuid(int(cred.Uid)); err != nil {
		return errors.Wrapf(err, "setuid(%d)", cred.Uid)
	}
	return nil
}

const noCredential = "-"

func encodeCredential(cred *syscall.Credential) string {
	if cred == nil {
		return noCredential
	}
	return fmt.Sprintf("%d:%d", cred.Uid, cred.Gid)
}

func decodeCredential(s string) (*syscall.Credential, error) {
	if s == noCredential {
		return nil, nil
	}
	uidStr, gidStr, ok := strings.Cut(s, ":")
	if !ok {
		return nil, errors.Errorf("invalid credential %q", s)
	}
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid credential %q", s)
	}
	gid, err := strconv.ParseUint(gidStr, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid credential %q", s)
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}

func encodeRLimits(limits []rlimit.RLimit) string {
	parts := make([]string, 0, len(limits))
	for _, l := range limits {
		parts = append(parts, fmt.Sprintf("%d:%d:%d", l.Res, l.Rlim.Cur, l.Rlim.Max))
	}
	return strings.Join(parts, ",")
}

func decodeRLimits(s string) ([]rlimit.RLimit, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	limits := make([]rlimit.RLimit, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, errors.Errorf("invalid rlimit %q", part)
		}
		res, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rlimit %q", part)
		}
		cur, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rlimit %q", part)
		}
		max, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rlimit %q", part)
		}
		limits = append(limits, rlimit.RLimit{Res: res, Rlim: syscall.Rlimit{Cur: cur, Max: max}})
	}
	return limits, nil
}
