package probelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrIncompleteLog is returned when a ScopeBegin has no matching ScopeEnd
// before end-of-stream or a ThreadEnd — the check that detects unclean
// shutdowns of the benchmarking target (spec §4.6).
var ErrIncompleteLog = errors.New("probelog: incomplete log")

// ErrUnknownEventKind is returned for any event tag the parser does not
// recognize; the producer and this parser are versioned together, so an
// unknown tag is treated as fatal rather than skipped.
var ErrUnknownEventKind = errors.New("probelog: unknown event kind")

// Log is the decoded preamble plus the full typed event stream.
type Log struct {
	Metadata Metadata
	Events   []Event
}

// Open wraps r with transparent decompression based on name's suffix, then
// parses the resulting NDJSON stream.
func Open(r io.Reader, name string) (Log, error) {
	decoded, err := decompress(r, name)
	if err != nil {
		return Log{}, fmt.Errorf("probelog: decompress %s: %w", name, err)
	}
	return Parse(decoded)
}

func decompress(r io.Reader, name string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return r, nil
	}
}

// Parse reads the metadata line, the start line, and the remaining typed
// events from an already-decompressed NDJSON stream.
func Parse(r io.Reader) (Log, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	metadata, err := readMetadataLine(scanner)
	if err != nil {
		return Log{}, err
	}
	if err := readStartLine(scanner); err != nil {
		return Log{}, err
	}

	events, err := readEvents(scanner)
	if err != nil {
		return Log{}, err
	}

	return Log{Metadata: metadata, Events: events}, nil
}

func readMetadataLine(scanner *bufio.Scanner) (Metadata, error) {
	if !scanner.Scan() {
		return Metadata{}, fmt.Errorf("%w: missing metadata line", ErrIncompleteLog)
	}
	var m Metadata
	if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
		return Metadata{}, fmt.Errorf("probelog: parse metadata line: %w", err)
	}
	return m, nil
}

func readStartLine(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		return fmt.Errorf("%w: missing start line", ErrIncompleteLog)
	}
	var e Event
	if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
		return fmt.Errorf("probelog: parse start line: %w", err)
	}
	if e.Kind != KindStart && e.Kind != "" {
		return fmt.Errorf("probelog: expected start line, got kind %q", e.Kind)
	}
	return nil
}

func readEvents(scanner *bufio.Scanner) ([]Event, error) {
	var events []Event
	openScopes := map[int][]string{} // thread -> stack of open scope names

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("probelog: parse event line: %w", err)
		}

		switch e.Kind {
		case KindScopeBegin:
			openScopes[e.Thread] = append(openScopes[e.Thread], e.ScopeName)
		case KindScopeEnd:
			stack := openScopes[e.Thread]
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: scope_end %q on thread %d with no open scope", ErrIncompleteLog, e.ScopeName, e.Thread)
			}
			openScopes[e.Thread] = stack[:len(stack)-1]
		case KindThreadEnd:
			if len(openScopes[e.Thread]) != 0 {
				return nil, fmt.Errorf("%w: thread %d ended with open scopes %v", ErrIncompleteLog, e.Thread, openScopes[e.Thread])
			}
			delete(openScopes, e.Thread)
		case KindPoint, KindKeyValue, KindFlushTiming:
			// handled by the call-tree builder; nothing to validate here.
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
		}

		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("probelog: scan events: %w", err)
	}

	for thread, stack := range openScopes {
		if len(stack) != 0 {
			return nil, fmt.Errorf("%w: thread %d ended stream with open scopes %v", ErrIncompleteLog, thread, stack)
		}
	}

	return events, nil
}
