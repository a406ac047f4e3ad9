package models

// Room is a wiring closet / network room / server room within a location.
type Room struct {
	ID          string
	LocationID  string
	Description string
	Position    string // free-form coordinates, e.g. "63.4,10.4"
	Data        map[string]string
}

// Location groups rooms, e.g. a campus. Locations form a tree.
type Location struct {
	ID          string
	ParentID    *string
	Description string
}

// Organization is the unit in charge of a netbox or a vlan.
// Organizations form a tree.
type Organization struct {
	ID          string
	ParentID    *string
	Description string
}

// NetboxGroup is a named group of netboxes, orthogonal to categories.
// Groups drive alert filtering and the equipment-group admin surface.
type NetboxGroup struct {
	ID          string
	Description string
}
