package probelog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/i5heu/GoFifoSim/pkg/syncfifo"
)

// Logger emits one structured event per usage violation. It observes
// only; the queue state is never touched.
type Logger struct {
	log  *zap.Logger
	name string
}

// New wraps an existing zap logger. The name tags every event so that
// several queues can share one logger.
func New(name string, log *zap.Logger) *Logger {
	return &Logger{log: log, name: name}
}

// FileConfig configures the rotating event log file.
type FileConfig struct {
	FileLogName string `yaml:"file_log_name"`
	MaxSize     int    `yaml:"max_size"` // megabytes
	MaxBackups  int    `yaml:"max_backups"`
	MaxAge      int    `yaml:"max_age"` // days
	Compress    bool   `yaml:"compress"`
}

// NewRotatingFile builds a Logger that writes JSON events to a
// size-rotated file.
func NewRotatingFile(name string, cfg FileConfig) *Logger {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FileLogName,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, sink, zapcore.WarnLevel)
	return New(name, zap.New(core))
}

func (l *Logger) WriteWhileFull(tick uint64) {
	l.log.Warn("write while full",
		zap.String("fifo", l.name),
		zap.Uint64("tick", tick),
	)
}

func (l *Logger) ReadWhileEmpty(tick uint64) {
	l.log.Warn("read while empty",
		zap.String("fifo", l.name),
		zap.Uint64("tick", tick),
	)
}

// Sync flushes buffered events.
func (l *Logger) Sync() error {
	return l.log.Sync()
}

// Counter tallies violations in memory. The zero value is ready to use.
type Counter struct {
	FullWrites        uint64
	EmptyReads        uint64
	LastFullWriteTick uint64
	LastEmptyReadTick uint64
}

func (c *Counter) WriteWhileFull(tick uint64) {
	c.FullWrites++
	c.LastFullWriteTick = tick
}

func (c *Counter) ReadWhileEmpty(tick uint64) {
	c.EmptyReads++
	c.LastEmptyReadTick = tick
}

// Total returns the combined violation count.
func (c *Counter) Total() uint64 {
	return c.FullWrites + c.EmptyReads
}

// Fanout forwards each event to every attached probe.
type Fanout []syncfifo.Probe

func (f Fanout) WriteWhileFull(tick uint64) {
	for _, p := range f {
		p.WriteWhileFull(tick)
	}
}

func (f Fanout) ReadWhileEmpty(tick uint64) {
	for _, p := range f {
		p.ReadWhileEmpty(tick)
	}
}
