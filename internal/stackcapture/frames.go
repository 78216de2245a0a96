package stackcapture

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Frame is one resolved entry of a goroutine stack.
type Frame struct {
	Index    int
	Function string
	File     string
	Line     int
	Offset   string
}

// String formats the frame as "<index> <file:line> <function> + <offset>".
func (f Frame) String() string {
	location := "--unknown--"
	if f.File != "" {
		location = filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
	}
	offset := f.Offset
	if offset == "" {
		offset = "0x0"
	}
	return fmt.Sprintf("%-4d%-30s %s + %s", f.Index, location, f.Function, offset)
}

// FormatFrames joins frames with newlines.
func FormatFrames(frames []Frame) string {
	lines := make([]string, len(frames))
	for i, f := range frames {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

// parseGoroutine finds the block for goroutine id in a runtime.Stack(all)
// dump and parses its frames.
func parseGoroutine(dump []byte, id int64) ([]Frame, error) {
	block, ok := findGoroutineBlock(dump, id)
	if !ok {
		return nil, ErrForegroundGone
	}
	frames := parseFrames(block)
	if len(frames) == 0 {
		return nil, ErrUnreadableStack
	}
	return frames, nil
}

func findGoroutineBlock(dump []byte, id int64) ([]byte, bool) {
	for len(dump) > 0 {
		var block []byte
		if idx := bytes.Index(dump, []byte("\n\ngoroutine ")); idx >= 0 {
			block, dump = dump[:idx], dump[idx+2:]
		} else {
			block, dump = dump, nil
		}

		header := block
		if nl := bytes.IndexByte(block, '\n'); nl >= 0 {
			header = block[:nl]
		}
		if gid, _ := parseGoroutineHeader(header); gid == id {
			if nl := bytes.IndexByte(block, '\n'); nl >= 0 {
				return block[nl+1:], true
			}
			return nil, true
		}
	}
	return nil, false
}

// parseFrames parses the "function(args)\n\tfile:line +0xoff" pairs that
// follow a goroutine header.
func parseFrames(block []byte) []Frame {
	lines := strings.Split(strings.TrimRight(string(block), "\n"), "\n")
	var frames []Frame
	for i := 0; i < len(lines); i++ {
		fn := strings.TrimSpace(lines[i])
		if fn == "" || strings.HasPrefix(lines[i], "\t") {
			continue
		}
		if strings.HasPrefix(fn, "...") {
			// "...additional frames elided..."
			continue
		}
		frame := Frame{Index: len(frames), Function: functionName(fn)}
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
			frame.File, frame.Line, frame.Offset = parseLocation(strings.TrimSpace(lines[i+1]))
			i++
		}
		frames = append(frames, frame)
	}
	return frames
}

// functionName strips the argument list from "pkg.(*T).m(0x1, 0x2)" and
// keeps "created by" lines readable.
func functionName(line string) string {
	if strings.HasPrefix(line, "created by ") {
		if idx := strings.Index(line, " in goroutine "); idx >= 0 {
			return line[:idx]
		}
		return line
	}
	if strings.HasSuffix(line, ")") {
		if idx := strings.LastIndexByte(line, '('); idx > 0 {
			return line[:idx]
		}
	}
	return line
}

// parseLocation parses "/path/file.go:123 +0x1d".
func parseLocation(loc string) (file string, line int, offset string) {
	if sp := strings.LastIndexByte(loc, ' '); sp >= 0 && strings.HasPrefix(loc[sp+1:], "+") {
		offset = loc[sp+2:]
		loc = loc[:sp]
	}
	colon := strings.LastIndexByte(loc, ':')
	if colon < 0 {
		return loc, 0, offset
	}
	n, err := strconv.Atoi(loc[colon+1:])
	if err != nil {
		return loc, 0, offset
	}
	return loc[:colon], n, offset
}
