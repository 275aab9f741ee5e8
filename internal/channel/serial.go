package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const defaultSerialReadTimeout = 300 * time.Millisecond

// SerialChannel talks to a LoRa modem over a serial port using the
// link-level framing from frame.go. The modem handles modulation and
// carrier sense; this side only sees whole frames.
type SerialChannel struct {
	portName string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	writeMu sync.Mutex
}

func NewSerialChannel(portName string, baudRate int) *SerialChannel {
	return &SerialChannel{
		portName: portName,
		baudRate: baudRate,
	}
}

func (c *SerialChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.portName == "" {
		return errors.New("serial port is empty")
	}
	if c.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", c.baudRate)
	}

	port, err := serial.Open(c.portName, &serial.Mode{BaudRate: c.baudRate})
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", c.portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set serial read timeout: %w", err)
	}
	c.port = port

	return nil
}

func (c *SerialChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}

func (c *SerialChannel) Transmit(ctx context.Context, frame []byte) error {
	port, err := c.currentPort()
	if err != nil {
		return err
	}

	linkFrame, err := encodeLinkFrame(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := writeFull(ctx, port, linkFrame); err != nil {
		return fmt.Errorf("write link frame: %w", err)
	}
	return nil
}

// Receive waits up to timeout for one complete frame. Expiry is reported
// as ErrTimeout.
func (c *SerialChannel) Receive(ctx context.Context, timeout time.Duration) ([]byte, SignalReport, error) {
	port, err := c.currentPort()
	if err != nil {
		return nil, SignalReport{}, err
	}

	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, sig, err := readLinkFrame(func(buf []byte) error {
		return readFullWithContext(readCtx, port, buf)
	})
	if err != nil {
		if readCtx.Err() != nil && ctx.Err() == nil {
			return nil, SignalReport{}, ErrTimeout
		}
		return nil, SignalReport{}, err
	}
	return payload, sig, nil
}

func (c *SerialChannel) currentPort() (serial.Port, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil, errors.New("channel is not connected")
	}
	return c.port, nil
}

func readFullWithContext(ctx context.Context, r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf[read:])
		if err != nil {
			return err
		}
		if n == 0 {
			// Serial read timeout slice expired with no data.
			continue
		}
		read += n
	}

	return nil
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}
	return nil
}
