package sequence

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// IssueKind classifies a numbering problem.
type IssueKind string

const (
	IssueGap       IssueKind = "gap"
	IssueDuplicate IssueKind = "duplicate"
)

// NumberingIssue is a hole or a repeated index among frame file names.
type NumberingIssue struct {
	Kind IssueKind
	// From and To bound the missing range for a gap; both equal the
	// repeated index for a duplicate.
	From  int
	To    int
	Files []string
}

func (i NumberingIssue) String() string {
	switch i.Kind {
	case IssueDuplicate:
		return fmt.Sprintf("index %d used by %s", i.From, strings.Join(i.Files, ", "))
	default:
		if i.From == i.To {
			return fmt.Sprintf("missing index %d", i.From)
		}
		return fmt.Sprintf("missing indices %d-%d", i.From, i.To)
	}
}

// CheckNumbering takes frame file names in playback order and reports gaps
// and duplicates in their trailing numbers. Names without a number are
// ignored.
func CheckNumbering(names []string) []NumberingIssue {
	var issues []NumberingIssue
	seen := make(map[int][]string)
	var order []int

	for _, n := range names {
		idx, ok := frameIndex(n)
		if !ok {
			continue
		}
		if _, dup := seen[idx]; !dup {
			order = append(order, idx)
		}
		seen[idx] = append(seen[idx], path.Base(n))
	}

	for i, idx := range order {
		if files := seen[idx]; len(files) > 1 {
			issues = append(issues, NumberingIssue{Kind: IssueDuplicate, From: idx, To: idx, Files: files})
		}
		if i > 0 && idx-order[i-1] > 1 {
			issues = append(issues, NumberingIssue{Kind: IssueGap, From: order[i-1] + 1, To: idx - 1})
		}
	}
	return issues
}

// frameIndex parses the last run of digits in the file stem.
func frameIndex(name string) (int, bool) {
	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))

	end := len(stem)
	for end > 0 && !isDigit(stem[end-1]) {
		end--
	}
	start := end
	for start > 0 && isDigit(stem[start-1]) {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(stem[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
