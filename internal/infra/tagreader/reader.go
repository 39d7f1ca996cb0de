// Package tagreader feeds physical tag scans into the dispatcher. The RFID
// reader side (udev rule, serial bridge or kernel hidraw) writes one tag ID
// per line into a FIFO; this package tails it.
package tagreader

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler consumes one tag scan.
type Handler interface {
	HandleTag(tagID string) error
}

// Reader tails the tag FIFO and forwards scans to the handler.
type Reader struct {
	path    string
	handler Handler

	// sameTagWindow suppresses duplicate reads of a tag resting on the
	// reader.
	sameTagWindow time.Duration
	lastTag       string
	lastSeen      time.Time
}

// New creates a Reader for the FIFO at path.
func New(path string, handler Handler) *Reader {
	return &Reader{
		path:          path,
		handler:       handler,
		sameTagWindow: 2 * time.Second,
	}
}

// Run tails the FIFO until ctx is cancelled. The FIFO is reopened after EOF,
// which happens whenever the writing side closes.
func (r *Reader) Run(ctx context.Context) {
	log.Info().Str("path", r.path).Msg("Tag reader started")

	for ctx.Err() == nil {
		if err := r.readOnce(ctx); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("path", r.path).Msg("Tag input not present yet")
			} else {
				log.Error().Err(err).Msg("Tag input read failed")
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}

	log.Info().Msg("Tag reader stopped")
}

func (r *Reader) readOnce(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Unblock the scanner when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tagID := strings.TrimSpace(scanner.Text())
		if tagID == "" {
			continue
		}
		r.scan(tagID)
	}
	return scanner.Err()
}

func (r *Reader) scan(tagID string) {
	now := time.Now()
	if tagID == r.lastTag && now.Sub(r.lastSeen) < r.sameTagWindow {
		r.lastSeen = now
		return
	}
	r.lastTag = tagID
	r.lastSeen = now

	log.Info().Str("tag", tagID).Msg("Tag scanned")
	if err := r.handler.HandleTag(tagID); err != nil {
		log.Warn().Err(err).Str("tag", tagID).Msg("Tag scan not dispatched")
	}
}
