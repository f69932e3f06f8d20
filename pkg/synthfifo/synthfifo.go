package synthfifo

import (
	"errors"

	"github.com/i5heu/GoFifoSim/pkg/syncfifo"
)

var (
	ErrAddrWidth = errors.New("synthfifo: address width must be between 1 and 32")
	ErrDataWidth = errors.New("synthfifo: data width must be between 1 and 64")
)

// Word is the element type at the hardware-facing surface.
type Word = uint64

// Config sizes the queue the way a synthesis wrapper would: by widths,
// not by counts. Capacity is always 1 << AddrWidth.
type Config struct {
	AddrWidth uint `yaml:"addr_width"`
	DataWidth uint `yaml:"data_width"`
}

// Validate reports the first out-of-range width.
func (c Config) Validate() error {
	if c.AddrWidth < 1 || c.AddrWidth > 32 {
		return ErrAddrWidth
	}
	if c.DataWidth < 1 || c.DataWidth > 64 {
		return ErrDataWidth
	}
	return nil
}

// Capacity returns the slot count the config implies.
func (c Config) Capacity() uint64 {
	return 1 << c.AddrWidth
}

// Fifo wraps the any-capacity queue with the width-parameterized
// surface: write data is truncated to DataWidth bits before it is
// stored, mirroring what a fixed-width data port would do.
type Fifo struct {
	inner    *syncfifo.Fifo[Word]
	dataMask Word
	cfg      Config
}

// New creates a Fifo from the given widths.
func New(cfg Config) (*Fifo, error) {
	return NewWithProbe(cfg, nil)
}

// NewWithProbe creates a Fifo that reports usage violations to p.
func NewWithProbe(cfg Config, p syncfifo.Probe) (*Fifo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inner, err := syncfifo.NewWithProbe[Word](cfg.Capacity(), p)
	if err != nil {
		return nil, err
	}
	var mask Word
	if cfg.DataWidth == 64 {
		mask = ^Word(0)
	} else {
		mask = (Word(1) << cfg.DataWidth) - 1
	}
	return &Fifo{inner: inner, dataMask: mask, cfg: cfg}, nil
}

// Tick runs one clock step; writeData is masked to the data width.
func (f *Fifo) Tick(reset, writeEnable bool, writeData Word, readEnable bool) (readData Word, full, empty bool) {
	return f.inner.Tick(reset, writeEnable, writeData&f.dataMask, readEnable)
}

// TryWrite runs one tick carrying only a write request; data is masked
// to the data width.
func (f *Fifo) TryWrite(data Word) bool {
	return f.inner.TryWrite(data & f.dataMask)
}

// TryRead runs one tick carrying only a read request.
func (f *Fifo) TryRead() (Word, bool) {
	return f.inner.TryRead()
}

func (f *Fifo) Full() bool        { return f.inner.Full() }
func (f *Fifo) Empty() bool       { return f.inner.Empty() }
func (f *Fifo) UsedSlots() uint64 { return f.inner.UsedSlots() }
func (f *Fifo) FreeSlots() uint64 { return f.inner.FreeSlots() }
func (f *Fifo) Capacity() uint64  { return f.inner.Capacity() }
func (f *Fifo) Reset()            { f.inner.Reset() }

// ReadData returns the current value of the read output register.
func (f *Fifo) ReadData() Word { return f.inner.ReadData() }

// Ticks returns the number of ticks since construction.
func (f *Fifo) Ticks() uint64 { return f.inner.Ticks() }

// AddrWidth returns the configured address width.
func (f *Fifo) AddrWidth() uint { return f.cfg.AddrWidth }

// DataWidth returns the configured data width.
func (f *Fifo) DataWidth() uint { return f.cfg.DataWidth }
