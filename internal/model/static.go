package model

type StaticGroup string

const (
	StaticGroupHeader StaticGroup = "header"
	StaticGroupFooter StaticGroup = "footer"
)

// StaticPages maps every known group to its members in display order.
type StaticPages map[StaticGroup][]Post

// IDs returns the ordered post ids of a group.
func (s StaticPages) IDs(group StaticGroup) []PostID {
	ids := make([]PostID, 0, len(s[group]))
	for _, p := range s[group] {
		ids = append(ids, p.ID)
	}
	return ids
}
