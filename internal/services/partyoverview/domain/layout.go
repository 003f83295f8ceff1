package domain

// Layout carries the sizing hints the panel exposes as CSS variables.
type Layout struct {
	Width     int
	MinWidth  int
	MinHeight int
}

const (
	layoutWidthInset = 100
	layoutBaseHeight = 78
	layoutRowHeight  = 33
)

// LayoutFor derives panel sizing from the row count and adapter width.
func LayoutFor(actorCount, adapterWidth int) Layout {
	if actorCount < 0 {
		actorCount = 0
	}
	return Layout{
		Width:     adapterWidth,
		MinWidth:  adapterWidth - layoutWidthInset,
		MinHeight: layoutBaseHeight + layoutRowHeight*actorCount,
	}
}
