package utils

import (
	"strconv"
	"strings"
)

// AuthorStoriesCacheKey scopes the shared listing cache per author. Bump the
// version suffix when the cached shape changes.
func AuthorStoriesCacheKey(authorID string) string {
	return "stories:author:" + strings.TrimSpace(authorID) + ":v1"
}

func BrowseStoriesCacheKey(limit, offset int, genre *string) string {
	g := ""
	if genre != nil {
		g = strings.ToLower(strings.TrimSpace(*genre))
	}

	return "stories:browse:v1:limit=" + strconv.Itoa(limit) +
		":offset=" + strconv.Itoa(offset) +
		":genre=" + g
}
