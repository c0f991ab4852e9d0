package model

import "fmt"

// Category groups pylint messages by the first letter of their code.
type Category string

const (
	CategoryError      Category = "E"
	CategoryWarning    Category = "W"
	CategoryRefactor   Category = "R"
	CategoryConvention Category = "C"
)

// Categories lists the buckets in panel order.
var Categories = []Category{CategoryError, CategoryWarning, CategoryRefactor, CategoryConvention}

// CategoryFromCode maps the first character of a message code to its bucket.
func CategoryFromCode(code string) (Category, bool) {
	if code == "" {
		return "", false
	}
	switch Category(code[:1]) {
	case CategoryError, CategoryWarning, CategoryRefactor, CategoryConvention:
		return Category(code[:1]), true
	}
	return "", false
}

// Name is the severity name pylint uses.
func (c Category) Name() string {
	switch c {
	case CategoryError:
		return "Error"
	case CategoryWarning:
		return "Warning"
	case CategoryRefactor:
		return "Refactor"
	case CategoryConvention:
		return "Convention"
	}
	return "Unknown"
}

// Label is the heading shown in the results panel. Convention messages are
// shown as "Cosmetics".
func (c Category) Label() string {
	switch c {
	case CategoryError:
		return "Errors"
	case CategoryWarning:
		return "Warnings"
	case CategoryRefactor:
		return "Refactoring"
	case CategoryConvention:
		return "Cosmetics"
	}
	return "Other"
}

// ExitStatus tells whether the child exited on its own or was killed.
type ExitStatus int

const (
	ExitNormal ExitStatus = iota
	ExitCrash
)

func (s ExitStatus) String() string {
	if s == ExitCrash {
		return "crash"
	}
	return "normal"
}

func (s ExitStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ExitStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = ExitNormal
	case "crash":
		*s = ExitCrash
	default:
		return fmt.Errorf("unknown exit status %q", b)
	}
	return nil
}

// AnalysisRequest describes one pylint run. Treat as immutable once built.
type AnalysisRequest struct {
	FilePath    string   // absolute path of the file to check
	Encoding    string   // text encoding of the file and of pylint's output
	ConfigFile  string   // optional rcfile passed with --rcfile
	SearchPaths []string // prepended to sys.path through --init-hook
}

// Message is one diagnostic line from the pylint report.
type Message struct {
	Module string `json:"module"`
	Line   int    `json:"line"`
	Object string `json:"object,omitempty"` // function/class the message refers to
	Text   string `json:"text"`
	Code   string `json:"code"` // e.g. C0103
}

// AnalysisResult is produced once per finished run.
type AnalysisResult struct {
	ID           string                 `json:"id"`
	FilePath     string                 `json:"file_path"`
	Timestamp    string                 `json:"timestamp"`
	ExitCode     *int                   `json:"exit_code,omitempty"`
	ExitStatus   ExitStatus             `json:"exit_status"`
	Stdout       *string                `json:"stdout,omitempty"`
	Stderr       *string                `json:"stderr,omitempty"`
	Rate         *string                `json:"rate,omitempty"`
	PreviousRate *string                `json:"previous_rate,omitempty"`
	Messages     map[Category][]Message `json:"messages,omitempty"`
	ProcessError *string                `json:"process_error,omitempty"`
}

// Empty reports whether the result is the cleared state.
func (r AnalysisResult) Empty() bool {
	return r.FilePath == "" && r.Stdout == nil && r.ProcessError == nil
}

// Failed is true when pylint produced no report.
func (r AnalysisResult) Failed() bool {
	return r.ProcessError != nil
}

// Count returns the number of messages in one bucket.
func (r AnalysisResult) Count(c Category) int {
	return len(r.Messages[c])
}

// Total returns the number of messages across all buckets.
func (r AnalysisResult) Total() int {
	n := 0
	for _, c := range Categories {
		n += len(r.Messages[c])
	}
	return n
}

// Flags decodes the pylint exit code. Zero when there is no exit code.
func (r AnalysisResult) Flags() ExitFlags {
	if r.ExitCode == nil || *r.ExitCode < 0 {
		return 0
	}
	return ExitFlags(*r.ExitCode)
}

// ExitFlags is the bit mask pylint returns as its exit code.
type ExitFlags int

const (
	FlagFatal ExitFlags = 1 << iota
	FlagError
	FlagWarning
	FlagRefactor
	FlagConvention
	FlagUsage
)

// Describe lists the set bits by name.
func (f ExitFlags) Describe() []string {
	names := []struct {
		flag ExitFlags
		name string
	}{
		{FlagFatal, "fatal message issued"},
		{FlagError, "error message issued"},
		{FlagWarning, "warning message issued"},
		{FlagRefactor, "refactor message issued"},
		{FlagConvention, "convention message issued"},
		{FlagUsage, "usage error"},
	}
	var out []string
	for _, n := range names {
		if f&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// StrPtr returns a pointer to a copy of s.
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to a copy of i.
func IntPtr(i int) *int { return &i }

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
