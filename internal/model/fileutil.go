package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SourceLine is one numbered line of a source file.
type SourceLine struct {
	Number int
	Text   string
	Target bool // the line a message points at
}

// LineContext is a message location together with the surrounding source.
type LineContext struct {
	Path       string
	LineNumber int
	Lines      []SourceLine
	ErrorMsg   string // set when the file could not be read or the line is out of range
}

// Target returns the line the context was built for.
func (c LineContext) Target() (SourceLine, bool) {
	for _, l := range c.Lines {
		if l.Target {
			return l, true
		}
	}
	return SourceLine{}, false
}

// GetLineContext reads filePath and returns lineNumber with radius lines on
// each side.
func GetLineContext(filePath string, lineNumber, radius int) LineContext {
	result := LineContext{
		Path:       filePath,
		LineNumber: lineNumber,
	}

	if strings.HasPrefix(filePath, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			filePath = strings.Replace(filePath, "~", home, 1)
		}
	}

	file, err := os.Open(filePath)
	if err != nil {
		result.ErrorMsg = fmt.Sprintf("Could not read file: %v", err)
		return result
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		result.ErrorMsg = fmt.Sprintf("Error reading file: %v", err)
		return result
	}

	if lineNumber < 1 || lineNumber > len(lines) {
		result.ErrorMsg = fmt.Sprintf("Line %d out of range (file has %d lines)", lineNumber, len(lines))
		return result
	}

	if radius < 0 {
		radius = 0
	}
	first := max(1, lineNumber-radius)
	last := min(len(lines), lineNumber+radius)
	for n := first; n <= last; n++ {
		result.Lines = append(result.Lines, SourceLine{
			Number: n,
			Text:   lines[n-1],
			Target: n == lineNumber,
		})
	}
	return result
}
