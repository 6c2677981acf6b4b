package fetch

// DefaultURLBudget keeps serialized resource lists under typical URL
// length limits (~2000 chars).
const DefaultURLBudget = 1800

// ChunkResources splits identifiers into comma-joinable batches whose
// serialized length stays under maxLen. Identifiers accumulate until the
// next one would overflow the budget.
func ChunkResources(items []string, maxLen int) [][]string {
	if maxLen <= 0 {
		maxLen = DefaultURLBudget
	}

	var chunks [][]string
	var chunk []string
	currentLen := 0

	for _, item := range items {
		addLen := len(item)
		if len(chunk) > 0 {
			addLen++ // separating comma
		}
		if currentLen+addLen > maxLen && len(chunk) > 0 {
			chunks = append(chunks, chunk)
			chunk = []string{item}
			currentLen = len(item)
		} else {
			chunk = append(chunk, item)
			currentLen += addLen
		}
	}

	if len(chunk) > 0 {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ChunkCount splits identifiers into batches of at most size elements.
func ChunkCount(items []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var chunks [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
