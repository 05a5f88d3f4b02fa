package utils

// AvgCharsPerToken is a conservative estimate for mixed content (code + JSON).
const AvgCharsPerToken = 2

// EstimateCharsFromTokens converts a token budget into a character budget.
func EstimateCharsFromTokens(tokens int) int {
	return tokens * AvgCharsPerToken
}

// TrimContentAroundCursor trims lines to fit within maxTokens while keeping
// context balanced above and below the cursor. Returns the trimmed lines, the
// cursor row within them, the number of lines removed from the start, and
// whether trimming occurred. cursorRow is 0-indexed.
func TrimContentAroundCursor(lines []string, cursorRow, maxTokens int) ([]string, int, int, bool) {
	if len(lines) == 0 {
		return lines, 0, 0, false
	}

	if cursorRow < 0 {
		cursorRow = 0
	}
	if cursorRow >= len(lines) {
		cursorRow = len(lines) - 1
	}

	if maxTokens <= 0 {
		return lines, cursorRow, 0, false
	}

	maxChars := EstimateCharsFromTokens(maxTokens)

	totalChars := 0
	for _, line := range lines {
		totalChars += len(line) + 1
	}
	if totalChars <= maxChars {
		return lines, cursorRow, 0, false
	}

	// Half the budget above the cursor, half below, spilling unused budget
	// to the other side.
	cursorLineChars := len(lines[cursorRow]) + 1
	halfBudget := (maxChars - cursorLineChars) / 2

	startLine := cursorRow
	charsBefore := 0
	for startLine > 0 {
		newChars := len(lines[startLine-1]) + 1
		if charsBefore+newChars > halfBudget {
			break
		}
		startLine--
		charsBefore += newChars
	}

	budgetAfter := halfBudget + (halfBudget - charsBefore)
	endLine := cursorRow
	charsAfter := 0
	for endLine < len(lines)-1 {
		newChars := len(lines[endLine+1]) + 1
		if charsAfter+newChars > budgetAfter {
			break
		}
		endLine++
		charsAfter += newChars
	}

	unusedAfter := budgetAfter - charsAfter
	if unusedAfter > 0 {
		for startLine > 0 {
			newChars := len(lines[startLine-1]) + 1
			if charsBefore+newChars > halfBudget+unusedAfter {
				break
			}
			startLine--
			charsBefore += newChars
		}
	}

	trimmed := make([]string, endLine-startLine+1)
	copy(trimmed, lines[startLine:endLine+1])

	return trimmed, cursorRow - startLine, startLine, true
}
