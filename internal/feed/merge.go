// Package feed is the client-side model of the social feed: paginated lists
// that tolerate overlapping pages, and cards that apply interactions
// optimistically.
package feed

// Identified is anything listed in a feed.
type Identified interface {
	GetID() string
}

// MergePage appends the items of page whose id is not already in list.
// Cursor pages can overlap when new tickets arrive between fetches.
func MergePage[T Identified](list, page []T) []T {
	seen := make(map[string]struct{}, len(list)+len(page))
	for _, it := range list {
		seen[it.GetID()] = struct{}{}
	}
	for _, it := range page {
		id := it.GetID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		list = append(list, it)
	}
	return list
}
