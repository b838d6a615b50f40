package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/reloadgo/internal/proc"
)

// FakeProc simulates one isolation group: a root process plus a number of
// descendants, optionally deaf to graceful termination.
type FakeProc struct {
	id   int
	deaf bool

	mu        sync.Mutex
	rootLive  bool
	kidsLive  int
	exit      proc.ExitStatus
	done      chan struct{}
	termCalls int
	killCalls int
}

func (p *FakeProc) PID() int { return p.id }

// Terminate delivers the graceful signal to the whole group. A deaf group
// ignores it; an empty group reports an error, as signalling a dead
// process group would.
func (p *FakeProc) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.termCalls++
	if !p.rootLive && p.kidsLive == 0 {
		return errors.New("process group is empty")
	}
	if p.deaf {
		return nil
	}
	p.kidsLive = 0
	p.exitRootLocked(-1)
	return nil
}

// Kill force-terminates the whole group; nothing survives it.
func (p *FakeProc) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.killCalls++
	p.kidsLive = 0
	p.exitRootLocked(-1)
	return nil
}

// ExitRoot simulates the root finishing on its own. Descendants keep
// running until a later group kill sweeps them.
func (p *FakeProc) ExitRoot(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitRootLocked(proc.ExitStatus(code))
}

func (p *FakeProc) exitRootLocked(status proc.ExitStatus) {
	if !p.rootLive {
		return
	}
	p.rootLive = false
	p.exit = status
	close(p.done)
}

func (p *FakeProc) Wait() proc.ExitStatus {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

// Live counts the simulated processes still alive in the group.
func (p *FakeProc) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.kidsLive
	if p.rootLive {
		n++
	}
	return n
}

// TermCalls reports how many graceful termination requests the group saw.
func (p *FakeProc) TermCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.termCalls
}

// KillCalls reports how many forced kills the group saw.
func (p *FakeProc) KillCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killCalls
}

// FakeStarter hands out FakeProcs and records every start for assertions.
type FakeStarter struct {
	Children int  // simulated descendants per started group
	Deaf     bool // started groups ignore graceful termination

	mu          sync.Mutex
	nextErr     error
	nextID      int
	procs       []*FakeProc
	plans       []proc.RunPlan
	liveAtStart []int
}

func (s *FakeStarter) Start(ctx context.Context, plan proc.RunPlan) (proc.Proc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return nil, err
	}

	live := 0
	for _, p := range s.procs {
		live += p.Live()
	}

	s.nextID++
	p := &FakeProc{
		id:       1000 + s.nextID,
		deaf:     s.Deaf,
		rootLive: true,
		kidsLive: s.Children,
		done:     make(chan struct{}),
	}
	s.procs = append(s.procs, p)
	s.plans = append(s.plans, plan)
	s.liveAtStart = append(s.liveAtStart, live)
	return p, nil
}

// FailNext makes the next Start return err instead of a process.
func (s *FakeStarter) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr = err
}

// Procs returns the started fakes in start order.
func (s *FakeStarter) Procs() []*FakeProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FakeProc, len(s.procs))
	copy(out, s.procs)
	return out
}

// Plans returns the RunPlans passed to Start, in order.
func (s *FakeStarter) Plans() []proc.RunPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proc.RunPlan, len(s.plans))
	copy(out, s.plans)
	return out
}

// Started is the number of successful Start calls so far.
func (s *FakeStarter) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// LiveAtStart returns, for each Start, how many processes from earlier
// groups were still alive at that instant.
func (s *FakeStarter) LiveAtStart() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.liveAtStart))
	copy(out, s.liveAtStart)
	return out
}
