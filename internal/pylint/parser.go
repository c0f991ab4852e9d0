package pylint

import (
	"regexp"
	"strconv"
	"strings"

	"pylintview/internal/model"
)

const (
	// ModuleHeader starts every per-module section of the text report.
	ModuleHeader = "************* Module "

	ratePrefix     = "Your code has been rated at "
	previousPrefix = "previous run: "
	rateSuffix     = "/10"
)

// messageLine matches the code token our --msg-template puts first on a line.
var messageLine = regexp.MustCompile(`^[CRWE]+([0-9]{4})?:`)

// Parse turns the captured output of one pylint run into a result. It never
// fails: lines it cannot make sense of are dropped.
func Parse(stdout, stderr string, exitCode *int, status model.ExitStatus, filePath, timestamp string) model.AnalysisResult {
	result := model.AnalysisResult{
		FilePath:   filePath,
		Timestamp:  timestamp,
		ExitCode:   exitCode,
		ExitStatus: status,
	}

	if stdout == "" {
		if stderr != "" {
			result.ProcessError = model.StrPtr("pylint error:\n" + stderr)
			result.Stderr = model.StrPtr(stderr)
		} else {
			result.ProcessError = model.StrPtr("pylint produced no output (finished abruptly) for " + filePath)
		}
		return result
	}

	result.Stdout = model.StrPtr(stdout)
	result.Stderr = model.StrPtr(stderr)
	result.Messages = make(map[model.Category][]model.Message, len(model.Categories))
	for _, c := range model.Categories {
		result.Messages[c] = []model.Message{}
	}

	module := ""
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if rest, ok := strings.CutPrefix(line, ModuleHeader); ok {
			module = rest
			continue
		}
		msg, ok := parseMessage(line)
		if !ok {
			continue
		}
		msg.Module = module
		category, _ := model.CategoryFromCode(line)
		result.Messages[category] = append(result.Messages[category], msg)
	}

	result.Rate, result.PreviousRate = parseRates(stdout)
	return result
}

// parseMessage splits "C0103:  12,0: obj: text" into its parts.
func parseMessage(line string) (model.Message, bool) {
	if !messageLine.MatchString(line) {
		return model.Message{}, false
	}
	code, rest, ok := strings.Cut(line, ":")
	if !ok {
		return model.Message{}, false
	}
	location, remainder, ok := strings.Cut(rest, ":")
	if !ok {
		return model.Message{}, false
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return model.Message{}, false
	}
	lineStr, _, _ := strings.Cut(location, ",")
	lineNo, err := strconv.Atoi(strings.TrimSpace(lineStr))
	if err != nil || lineNo < 1 {
		return model.Message{}, false
	}

	object, text := splitObject(remainder)
	return model.Message{
		Line:   lineNo,
		Object: object,
		Text:   text,
		Code:   code,
	}, true
}

// splitObject separates the "{obj}: {msg}" tail. An empty object leaves a
// stray leading colon which is dropped.
func splitObject(remainder string) (string, string) {
	remainder = strings.TrimLeft(remainder, " \t")
	if rest, ok := strings.CutPrefix(remainder, ":"); ok {
		return "", strings.TrimLeft(rest, " \t")
	}
	object, text, ok := strings.Cut(remainder, ": ")
	if !ok || object == "" || strings.ContainsAny(object, " \t") {
		return "", remainder
	}
	return object, strings.TrimLeft(text, " \t")
}

// parseRates extracts the score and the previous run's score, kept as printed.
func parseRates(stdout string) (*string, *string) {
	start := strings.Index(stdout, ratePrefix)
	if start < 0 {
		return nil, nil
	}
	start += len(ratePrefix)
	end := strings.Index(stdout[start:], rateSuffix)
	if end < 0 {
		return nil, nil
	}
	rate := model.StrPtr(stdout[start : start+end])

	tail := stdout[start+end:]
	prev := strings.Index(tail, previousPrefix)
	if prev < 0 {
		return rate, nil
	}
	prev += len(previousPrefix)
	prevEnd := strings.Index(tail[prev:], rateSuffix)
	if prevEnd < 0 {
		return rate, nil
	}
	return rate, model.StrPtr(tail[prev : prev+prevEnd])
}
