package stackcapture

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// GoroutineID returns the id of the calling goroutine as printed in
// runtime stack dumps, or 0 if it cannot be determined.
func GoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	id, _ := parseGoroutineHeader(buf[:n])
	return id
}

// parseGoroutineHeader parses "goroutine 18 [running]:" and returns the
// id and the state in brackets.
func parseGoroutineHeader(line []byte) (int64, string) {
	if !bytes.HasPrefix(line, goroutinePrefix) {
		return 0, ""
	}
	rest := line[len(goroutinePrefix):]
	end := bytes.IndexByte(rest, ' ')
	if end <= 0 {
		return 0, ""
	}
	id, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, ""
	}

	var state string
	if open := bytes.IndexByte(rest, '['); open >= 0 {
		if closing := bytes.IndexByte(rest[open:], ']'); closing > 0 {
			state = string(rest[open+1 : open+closing])
		}
	}
	return id, state
}
