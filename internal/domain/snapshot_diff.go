package domain

import (
	"fmt"
	"sort"
	"strings"
)

// CanonicalText flattens a history entry into a deterministic set of lines
// suitable for diffing: the journaled attribute values (text columns already
// LF-normalized in storage), followed by attachment references and custom
// values, all in stable order.
func (e HistoryEntry) CanonicalText() []string {
	lines := []string{
		fmt.Sprintf("Version: %d", e.Journal.Version),
		"Attributes:",
	}

	keys := make([]string, 0, len(e.Data.Values))
	for key := range e.Data.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		lines = append(lines, "  (empty)")
	}
	for _, key := range keys {
		value := e.Data.Values[key]
		if !value.Valid {
			lines = append(lines, fmt.Sprintf("  %s: null", key))
			continue
		}
		for idx, part := range strings.Split(value.String, "\n") {
			if idx == 0 {
				lines = append(lines, fmt.Sprintf("  %s: %s", key, part))
			} else {
				lines = append(lines, fmt.Sprintf("  %s| %s", key, part))
			}
		}
	}

	lines = append(lines, "Attachments:")
	attachments := append([]AttachableJournal(nil), e.Attachments...)
	sort.Slice(attachments, func(i, j int) bool {
		return attachments[i].AttachmentID < attachments[j].AttachmentID
	})
	if len(attachments) == 0 {
		lines = append(lines, "  (none)")
	}
	for _, attachment := range attachments {
		lines = append(lines, fmt.Sprintf("  #%d: %s", attachment.AttachmentID, attachment.Filename))
	}

	lines = append(lines, "CustomValues:")
	customValues := append([]CustomizableJournal(nil), e.CustomValues...)
	sort.Slice(customValues, func(i, j int) bool {
		return customValues[i].CustomFieldID < customValues[j].CustomFieldID
	})
	if len(customValues) == 0 {
		lines = append(lines, "  (none)")
	}
	for _, customValue := range customValues {
		lines = append(lines, fmt.Sprintf("  cf_%d: %s", customValue.CustomFieldID, customValue.Value))
	}

	return lines
}

// DiffHistoryEntries produces a unified diff between two history entries
// using the provided labels. A nil side diffs against the empty document.
func DiffHistoryEntries(baseLabel string, base *HistoryEntry, targetLabel string, target *HistoryEntry) string {
	return buildUnifiedDiff(baseLabel, targetLabel, canonicalString(base), canonicalString(target))
}

func canonicalString(entry *HistoryEntry) string {
	if entry == nil {
		return ""
	}
	return strings.Join(entry.CanonicalText(), "\n") + "\n"
}

type diffOp struct {
	prefix string
	line   string
}

func buildUnifiedDiff(baseLabel, targetLabel, baseContent, targetContent string) string {
	baseLines := splitLines(baseContent)
	targetLines := splitLines(targetContent)

	ops := diffLines(baseLines, targetLines)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("--- %s\n", baseLabel))
	builder.WriteString(fmt.Sprintf("+++ %s\n", targetLabel))
	builder.WriteString("@@ -0,0 +0,0 @@\n")
	for _, operation := range ops {
		builder.WriteString(operation.prefix)
		builder.WriteString(operation.line)
		builder.WriteString("\n")
	}

	return builder.String()
}

func splitLines(input string) []string {
	lines := strings.Split(input, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// diffLines walks a longest-common-subsequence table over the two line
// slices and emits keep/remove/add operations.
func diffLines(base, target []string) []diffOp {
	m := len(base)
	n := len(target)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if base[i] == target[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	ops := make([]diffOp, 0, m+n)
	i, j := 0, 0
	for i < m && j < n {
		if base[i] == target[j] {
			ops = append(ops, diffOp{prefix: " ", line: base[i]})
			i++
			j++
			continue
		}

		if dp[i+1][j] >= dp[i][j+1] {
			ops = append(ops, diffOp{prefix: "-", line: base[i]})
			i++
		} else {
			ops = append(ops, diffOp{prefix: "+", line: target[j]})
			j++
		}
	}

	for i < m {
		ops = append(ops, diffOp{prefix: "-", line: base[i]})
		i++
	}

	for j < n {
		ops = append(ops, diffOp{prefix: "+", line: target[j]})
		j++
	}

	return ops
}
