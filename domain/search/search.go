package search

import (
	"strconv"
	"strings"
)

// Query represents the structured parameters for a conversation search.
// It decouples the raw user input from the index engine requirements.
type Query struct {
	RawInput       string // The original input from the user
	Terms          string // The actual text to search in the index
	ConversationID string // Restrict to one conversation when set
	Status         string // Conversation status filter
	Limit          int    // Pagination: number of results
	Page           int    // Zero-based page
}

// NewQuery parses a raw string to extract command-line style arguments.
// Example: /find "plumber invoice" --conversation bk-1042 --limit 5
func NewQuery(input string) *Query {
	query := &Query{
		RawInput: input,
		Limit:    10, // Default limit
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		// Handle flags like --conversation bk-1042 or --limit 5
		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "conversation":
				query.ConversationID = val
			case "status":
				query.Status = val
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			case "page":
				if n, err := strconv.Atoi(val); err == nil && n >= 0 {
					query.Page = n
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		// If it's not a flag, it's a search term
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, strings.Trim(part, `"`))
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
