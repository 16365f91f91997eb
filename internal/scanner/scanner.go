// Package scanner treats the barcode decoder as a scoped resource: it is
// acquired when scanning begins and released on every exit path, success or
// cancel. The decode algorithm itself is an external collaborator; this
// package only consumes its stream of decoded strings.
package scanner

import (
	"bufio"
	"context"
	"io"
	"log"
	"strings"
	"sync"
)

// Decoder is a source of decoded barcode strings. Scans is closed when the
// device stops producing; Close releases the device and must be safe to
// call more than once.
type Decoder interface {
	Scans() <-chan string
	Close() error
}

// Run feeds every decoded barcode to handle until ctx is cancelled or the
// decoder's stream ends. The decoder is closed before Run returns, no
// matter which path it leaves by.
func Run(ctx context.Context, dec Decoder, handle func(ctx context.Context, code string)) error {
	defer func() {
		if err := dec.Close(); err != nil {
			log.Printf("[scanner] WARN: decoder close failed: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case code, ok := <-dec.Scans():
			if !ok {
				return nil
			}
			handle(ctx, code)
		}
	}
}

// LineDecoder adapts any line-oriented reader into a Decoder. Keyboard-
// wedge and serial scanners present decoded barcodes exactly this way: one
// code per line.
type LineDecoder struct {
	scans chan string
	once  sync.Once
	done  chan struct{}
	src   io.Reader
}

func NewLineDecoder(r io.Reader) *LineDecoder {
	d := &LineDecoder{
		scans: make(chan string),
		done:  make(chan struct{}),
		src:   r,
	}
	go d.read()
	return d
}

func (d *LineDecoder) read() {
	defer close(d.scans)

	lines := bufio.NewScanner(d.src)
	for lines.Scan() {
		code := strings.TrimSpace(lines.Text())
		if code == "" {
			continue
		}
		select {
		case d.scans <- code:
		case <-d.done:
			return
		}
	}
	if err := lines.Err(); err != nil {
		log.Printf("[scanner] WARN: read failed: %v", err)
	}
}

func (d *LineDecoder) Scans() <-chan string {
	return d.scans
}

// Close stops delivery and closes the underlying reader when it supports
// closing, which unblocks a pending read on device-backed sources.
func (d *LineDecoder) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		if closer, ok := d.src.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
