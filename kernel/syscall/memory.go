package syscall

import "github.com/sarchlab/rvkernel/kernel/proc"

func (d *Dispatcher) sysSbrk(p *proc.Process, args [6]uint64) (int64, error) {
	old, err := p.Space.Grow(int64(args[0]))
	if err != nil {
		return -1, err
	}

	return int64(old), nil
}

func (d *Dispatcher) sysMmap(p *proc.Process, args [6]uint64) (int64, error) {
	err := p.Space.Mmap(args[0], args[1], args[2])
	if err != nil {
		return -1, err
	}

	return 0, nil
}

func (d *Dispatcher) sysMunmap(p *proc.Process, args [6]uint64) (int64, error) {
	err := p.Space.Munmap(args[0], args[1])
	if err != nil {
		return -1, err
	}

	return 0, nil
}
