package models

// Column is the read-side view of one stage of a board: its label and the
// entities currently assigned to it, in order.
type Column struct {
	Stage    Stage
	Label    string
	Terminal bool
	Entities []*Entity
}

// Len returns the number of entities in the column
func (c *Column) Len() int {
	return len(c.Entities)
}

// IndexOf returns the position of the entity in the column, or -1
func (c *Column) IndexOf(entityID string) int {
	for i, e := range c.Entities {
		if e.ID == entityID {
			return i
		}
	}
	return -1
}
