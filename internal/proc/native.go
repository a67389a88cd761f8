package proc

import (
	gps "github.com/shirou/gopsutil/v4/process"
)

// native drives the child through gopsutil's per-platform signal handling.
type native struct {
	p *gps.Process
}

func newNative(pid int) (*native, error) {
	p, err := gps.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	return &native{p: p}, nil
}

func (n *native) Suspend() error   { return n.p.Suspend() }
func (n *native) Resume() error    { return n.p.Resume() }
func (n *native) Terminate() error { return n.p.Terminate() }
func (n *native) Kill() error      { return n.p.Kill() }
func (n *native) CanSuspend() bool { return true }
