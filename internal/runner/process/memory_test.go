package process

import (
	"testing"

	"github.com/prometheus/procfs"
)

func TestGroupMembers(t *testing.T) {
	const leader = 100
	stats := map[int]procfs.ProcStat{
		1:   {PID: 1, PPID: 0, PGRP: 1, State: "S", Starttime: 1},
		50:  {PID: 50, PPID: 1, PGRP: 50, State: "S", Starttime: 5},
		100: {PID: 100, PPID: 50, PGRP: 100, State: "S", Starttime: 10},
		// forked child
		101: {PID: 101, PPID: 100, PGRP: 100, State: "R", Starttime: 11},
		// grandchild that moved to its own session
		102: {PID: 102, PPID: 101, PGRP: 102, State: "R", Starttime: 12},
		// orphan reparented to init after setsid, seen earlier
		103: {PID: 103, PPID: 1, PGRP: 103, State: "S", Starttime: 13},
		// unrelated process reusing a pid seen earlier
		104: {PID: 104, PPID: 1, PGRP: 104, State: "S", Starttime: 99},
		105: {PID: 105, PPID: 100, PGRP: 100, State: "Z", Starttime: 14},
	}
	known := map[procKey]struct{}{
		{pid: 103, start: 13}: {},
		{pid: 104, start: 14}: {},
	}

	members := groupMembers(stats, leader, known)
	expected := []int{100, 101, 102, 103}
	if len(members) != len(expected) {
		t.Fatalf("expected %d members, got %v", len(expected), members)
	}
	for _, pid := range expected {
		if _, ok := members[procKey{pid: pid, start: stats[pid].Starttime}]; !ok {
			t.Fatalf("process %d is missing from %v", pid, members)
		}
	}
}
