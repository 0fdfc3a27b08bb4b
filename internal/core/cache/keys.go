package cache

// Class groups cache keys that share a TTL and an invalidation sweep.
type Class string

const (
	ClassBug   Class = "bug"
	ClassList  Class = "list"
	ClassStats Class = "stats"
)

// Prefix is the key prefix every entry of the class starts with.
func (c Class) Prefix() string {
	return string(c) + ":"
}

// Key returns the full key for suffix within the class.
func (c Class) Key(suffix string) string {
	return c.Prefix() + suffix
}

// BugKey is the per-bug detail key.
func BugKey(id string) string {
	return ClassBug.Key(id)
}
