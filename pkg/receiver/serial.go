// Package receiver moves bytes from the RC receiver's UART into the
// channel store.
package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/teslashibe/go-brawler/internal/log"
)

// Config holds the transport settings. iBus is 115200 8N1.
type Config struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	Backoff     time.Duration `yaml:"backoff"` // Wait after a transport error
}

// DefaultConfig returns the Raspberry Pi primary UART at iBus speed.
func DefaultConfig() Config {
	return Config{
		Port:        "/dev/serial0",
		Baud:        115200,
		ReadTimeout: 20 * time.Millisecond,
		Backoff:     500 * time.Millisecond,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errs []string
	if c.Port == "" {
		errs = append(errs, "port is required")
	}
	if c.Baud <= 0 {
		errs = append(errs, "baud must be positive")
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if c.Backoff < 0 {
		errs = append(errs, "backoff must not be negative")
	}
	return errs
}

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("receiver: port closed")

// Serial is an io.ReadCloser over a serial port that opens lazily and
// reopens after errors. A read that times out returns 0, nil.
type Serial struct {
	cfg  Config
	mode *serial.Mode
	log  *slog.Logger

	// open is replaced in tests
	open func(name string, mode *serial.Mode) (serial.Port, error)

	mu     sync.Mutex
	port   serial.Port
	closed bool
	opens  int
}

// NewSerial creates the transport; the port is opened on first Read.
func NewSerial(cfg Config) *Serial {
	return &Serial{
		cfg: cfg,
		mode: &serial.Mode{
			BaudRate: cfg.Baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		log:  log.Component("receiver").With("port", cfg.Port),
		open: serial.Open,
	}
}

// Read reads whatever arrived within the read timeout.
func (s *Serial) Read(p []byte) (int, error) {
	port, err := s.ensureOpen()
	if err != nil {
		return 0, err
	}

	n, err := port.Read(p)
	if err != nil {
		s.drop(port)
		return n, fmt.Errorf("read %s: %w", s.cfg.Port, err)
	}
	return n, nil
}

func (s *Serial) ensureOpen() (serial.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.port != nil {
		return s.port, nil
	}

	port, err := s.open(s.cfg.Port, s.mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.cfg.Port, err)
	}
	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	port.ResetInputBuffer()

	s.port = port
	s.opens++
	if s.opens == 1 {
		s.log.Info("serial port open", "baud", s.cfg.Baud)
	} else {
		s.log.Warn("serial port reopened", "opens", s.opens)
	}
	return port, nil
}

// drop closes port so the next Read reopens it
func (s *Serial) drop(port serial.Port) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == port {
		s.port.Close()
		s.port = nil
	}
}

// Opens returns how many times the port has been opened
func (s *Serial) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Close closes the port. Further reads return ErrClosed.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Ports lists the serial ports present on this machine
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
