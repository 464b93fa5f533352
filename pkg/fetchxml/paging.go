package fetchxml

import (
	"fmt"
	"regexp"
	"strings"
)

// The dialect encodes paging inline on the root element, so raw-text
// execution mutates the document rather than passing separate parameters.
var (
	fetchOpenTagPattern = regexp.MustCompile(`(?s)<fetch\b[^>]*>`)
	pageAttrPattern     = regexp.MustCompile(`\s+page\s*=\s*"[^"]*"`)
	countAttrPattern    = regexp.MustCompile(`\s+count\s*=\s*"[^"]*"`)
)

// InjectPaging returns queryText with page and count attributes set on the
// root fetch element, replacing any existing values. page is 1-based.
func InjectPaging(queryText string, page, pageSize int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize < 1 {
		return "", fmt.Errorf("page size must be >= 1, got %d", pageSize)
	}

	loc := fetchOpenTagPattern.FindStringIndex(queryText)
	if loc == nil {
		return "", fmt.Errorf("query text has no fetch element")
	}

	openTag := queryText[loc[0]:loc[1]]
	openTag = pageAttrPattern.ReplaceAllString(openTag, "")
	openTag = countAttrPattern.ReplaceAllString(openTag, "")

	paging := fmt.Sprintf(` page="%d" count="%d"`, page, pageSize)
	switch {
	case strings.HasSuffix(openTag, "/>"):
		openTag = openTag[:len(openTag)-2] + paging + "/>"
	default:
		openTag = openTag[:len(openTag)-1] + paging + ">"
	}

	return queryText[:loc[0]] + openTag + queryText[loc[1]:], nil
}
