package foundry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pendergraft/contraforge/internal/chains"
)

// forgeStatusSuccess is the status forge reports for a passing test
const forgeStatusSuccess = "Success"

// suiteReport is one entry of `forge test --json`, keyed by "<file>:<contract>"
type suiteReport struct {
	TestResults map[string]testReport `json:"test_results"`
}

type testReport struct {
	Status   string        `json:"status"`
	Reason   *string       `json:"reason"`
	Duration forgeDuration `json:"duration"`
}

// forgeDuration accepts the shapes forge has used across releases:
// a {secs, nanos} object, a duration string, or a plain number of nanoseconds.
type forgeDuration time.Duration

func (d *forgeDuration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = 0
		return nil
	}

	switch data[0] {
	case '{':
		var v struct {
			Secs  int64 `json:"secs"`
			Nanos int64 `json:"nanos"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*d = forgeDuration(time.Duration(v.Secs)*time.Second + time.Duration(v.Nanos))
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.ParseDuration(strings.ReplaceAll(s, " ", ""))
		if err != nil {
			// Unknown textual format; the duration is informational only
			*d = 0
			return nil
		}
		*d = forgeDuration(parsed)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*d = forgeDuration(time.Duration(n))
	}
	return nil
}

// ParseTestReport converts `forge test --json` output into a TestOutcome.
// Records are ordered by suite key, then by test name.
func ParseTestReport(stdout []byte) (*chains.TestOutcome, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("forge test produced no output")
	}

	// Forge may print progress lines before the report; the report is the last line
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 && trimmed[0] != '{' {
		trimmed = trimmed[i+1:]
	}

	var suites map[string]suiteReport
	if err := json.Unmarshal(trimmed, &suites); err != nil {
		return nil, fmt.Errorf("parsing forge test output: %w", err)
	}

	outcome := &chains.TestOutcome{Results: []chains.TestRecord{}}

	suiteKeys := make([]string, 0, len(suites))
	for k := range suites {
		suiteKeys = append(suiteKeys, k)
	}
	sort.Strings(suiteKeys)

	for _, key := range suiteKeys {
		tests := suites[key].TestResults
		names := make([]string, 0, len(tests))
		for name := range tests {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			t := tests[name]
			record := chains.TestRecord{
				Name:     name,
				File:     key,
				Status:   chains.TestFailed,
				Duration: time.Duration(t.Duration),
			}
			if t.Status == forgeStatusSuccess {
				record.Status = chains.TestPassed
			}
			if t.Reason != nil {
				record.Reason = *t.Reason
			}
			outcome.Add(record)
		}
	}

	outcome.Success = outcome.Failed == 0
	return outcome, nil
}
