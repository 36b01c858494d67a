package process

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// procKey tells a process apart from a later one that reuses its pid.
type procKey struct {
	pid   int
	start uint64
}

// memoryWatch samples the resident set of a judged program and all of its
// descendants and calls onExceed once when their sum crosses the limit.
// A process belongs to the program when it is in the leader's process
// group, descends from a member, or was a member in an earlier sample.
type memoryWatch struct {
	fs       procfs.FS
	pid      int
	shimPath string
	limitKB  int64
	interval time.Duration
	onExceed func()

	peakKB   atomic.Int64
	exceeded atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	members map[procKey]struct{}
}

func newMemoryWatch(fs procfs.FS, pid int, shimPath string, limitKB int64, interval time.Duration, onExceed func()) *memoryWatch {
	return &memoryWatch{
		fs:       fs,
		pid:      pid,
		shimPath: shimPath,
		limitKB:  limitKB,
		interval: interval,
		onExceed: onExceed,
		stop:     make(chan struct{}),
		members:  make(map[procKey]struct{}),
	}
}

func (w *memoryWatch) start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			w.sample()
			select {
			case <-w.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (w *memoryWatch) close() {
	close(w.stop)
	w.wg.Wait()
}

func (w *memoryWatch) sample() {
	leader, err := w.fs.Proc(w.pid)
	if err != nil {
		return
	}
	// the shim's own footprint is not the program's
	if exe, err := leader.Executable(); err != nil || exe == w.shimPath {
		return
	}
	procs, err := w.fs.AllProcs()
	if err != nil {
		return
	}

	stats := make(map[int]procfs.ProcStat, len(procs))
	for _, p := range procs {
		if st, err := p.Stat(); err == nil {
			stats[st.PID] = st
		}
	}

	w.mu.Lock()
	current := groupMembers(stats, w.pid, w.members)
	for key := range current {
		w.members[key] = struct{}{}
	}
	w.mu.Unlock()

	var totalKB int64
	for key := range current {
		totalKB += int64(stats[key.pid].ResidentMemory()) / 1024
	}
	peak := totalKB
	// VmHWM catches spikes of a single process between two samples
	if status, err := leader.NewStatus(); err == nil {
		peak = max(peak, int64(status.VmHWM/1024))
	}
	if peak > w.peakKB.Load() {
		w.peakKB.Store(peak)
	}
	if w.limitKB > 0 && peak > w.limitKB && !w.exceeded.Swap(true) {
		w.onExceed()
	}
}

// groupMembers returns the live processes that belong to the program led by
// leader. known holds members seen before, so a process that left the group
// with setsid and was reparented is still counted.
func groupMembers(stats map[int]procfs.ProcStat, leader int, known map[procKey]struct{}) map[procKey]struct{} {
	members := make(map[procKey]struct{})
	var belongs func(pid int, depth int) bool
	belongs = func(pid int, depth int) bool {
		st, ok := stats[pid]
		if !ok || depth > len(stats) {
			return false
		}
		key := procKey{pid: st.PID, start: st.Starttime}
		if _, ok := members[key]; ok {
			return true
		}
		if _, ok := known[key]; ok || pid == leader || st.PGRP == leader {
			return true
		}
		if st.PPID <= 1 || st.PPID == pid {
			return false
		}
		return belongs(st.PPID, depth+1)
	}
	for pid, st := range stats {
		if st.State == "Z" {
			continue
		}
		if belongs(pid, 0) {
			members[procKey{pid: st.PID, start: st.Starttime}] = struct{}{}
		}
	}
	return members
}

// kill sends SIGKILL to the leader's group and to every member seen so far
// that is still the same process.
func (w *memoryWatch) kill() {
	killGroup(w.pid)

	w.mu.Lock()
	members := make([]procKey, 0, len(w.members))
	for key := range w.members {
		members = append(members, key)
	}
	w.mu.Unlock()

	for _, key := range members {
		p, err := w.fs.Proc(key.pid)
		if err != nil {
			continue
		}
		st, err := p.Stat()
		if err != nil || st.Starttime != key.start {
			continue
		}
		_ = unix.Kill(key.pid, unix.SIGKILL)
	}
}
