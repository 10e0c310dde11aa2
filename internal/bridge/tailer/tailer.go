// Package tailer incrementally reads newly appended lines from a log file,
// tracking a durable read cursor.
//
// The tailer never persists cursors itself: it returns the advanced cursor
// in the batch and the caller commits it only after the batch has been fully
// processed downstream.  A crash mid-pipeline therefore causes re-delivery
// of the same lines, never loss.
package tailer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gateline/bridge/internal/bridge/types"
)

// fingerprintWindow is how many bytes immediately before the cursor offset
// are hashed to detect truncation or rotation.  It covers at least the last
// consumed line for the 61-character record format.
const fingerprintWindow = 256

// Line is one newline-terminated line with the byte offset of its start.
type Line struct {
	Text   string
	Offset int64
}

// Batch is the result of one tail call.
type Batch struct {
	Lines []Line

	// Next is the cursor to commit once the batch has been processed.
	// When no new lines were consumed, Next equals the input cursor.
	Next types.TailCursor

	// Rotated reports that the file shrank below the cursor offset or the
	// content under the cursor changed.  Next is then reset to byte zero
	// and carries no lines; the following tail call re-reads the file as
	// backlog.  Replay downstream is made safe by the offset-date filter
	// and the forwarder's idempotency keys.
	Rotated bool
}

// Tail reads lines appended to path since cur.  A zero cursor means the
// whole file is backlog: every line is yielded, oldest first.
//
// Partial trailing lines (no terminating newline yet) are withheld until a
// later call finds them terminated.  Read failures are returned as errors
// for this tick; the caller retries on the next scheduled tick.
func Tail(ctx context.Context, path string, cur types.TailCursor) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Batch{}, fmt.Errorf("stat log %s: %w", path, err)
	}

	if !cur.Zero() {
		rotated, err := rotationCheck(f, info.Size(), cur)
		if err != nil {
			return Batch{}, err
		}
		if rotated {
			return Batch{
				Next: types.TailCursor{
					Path:      path,
					UpdatedAt: time.Now().UTC(),
				},
				Rotated: true,
			}, nil
		}
	}

	if _, err := f.Seek(cur.Offset, io.SeekStart); err != nil {
		return Batch{}, fmt.Errorf("seek log %s: %w", path, err)
	}

	var (
		lines []Line
		pos   = cur.Offset
		r     = bufio.NewReader(f)
	)
	for {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}

		raw, err := r.ReadString('\n')
		if err == io.EOF {
			// Partial trailing line: the hardware is still writing it.
			break
		}
		if err != nil {
			return Batch{}, fmt.Errorf("read log %s: %w", path, err)
		}

		lines = append(lines, Line{
			Text:   raw[:len(raw)-1],
			Offset: pos,
		})
		pos += int64(len(raw))
	}

	if len(lines) == 0 {
		return Batch{Next: cur}, nil
	}

	fp, err := fingerprintAt(f, pos)
	if err != nil {
		return Batch{}, fmt.Errorf("fingerprint log %s: %w", path, err)
	}

	return Batch{
		Lines: lines,
		Next: types.TailCursor{
			Path:        path,
			Offset:      pos,
			Fingerprint: fp,
			UpdatedAt:   time.Now().UTC(),
		},
	}, nil
}

// rotationCheck reports whether the file no longer matches the cursor: it
// is now smaller than the consumed offset, or the content ending at the
// offset no longer carries the cursor's fingerprint.
func rotationCheck(f *os.File, size int64, cur types.TailCursor) (bool, error) {
	if size < cur.Offset {
		return true, nil
	}
	fp, err := fingerprintAt(f, cur.Offset)
	if err != nil {
		return false, fmt.Errorf("fingerprint check %s: %w", cur.Path, err)
	}
	return !bytes.Equal(fp, cur.Fingerprint), nil
}

// fingerprintAt hashes the window of bytes ending at offset.
func fingerprintAt(f *os.File, offset int64) ([]byte, error) {
	start := offset - fingerprintWindow
	if start < 0 {
		start = 0
	}
	buf := make([]byte, offset-start)
	if _, err := f.ReadAt(buf, start); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(buf)
	return sum[:], nil
}
