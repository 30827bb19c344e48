package core

// Category is one of a closed set of expense categories.
type Category string

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Housing       Category = "Housing"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Other         Category = "Other"
)

var categories = []Category{Food, Transport, Housing, Entertainment, Shopping, Bills, Other}

var categoryColors = map[Category]string{
	Food:          "#4caf50",
	Transport:     "#2196f3",
	Housing:       "#ff9800",
	Entertainment: "#9c27b0",
	Shopping:      "#f44336",
	Bills:         "#795548",
	Other:         "#607d8b",
}

// Categories returns the categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) IsValid() bool {
	_, ok := categoryColors[c]
	return ok
}

// Color returns the display color, gray for anything outside the set.
func (c Category) Color() string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return categoryColors[Other]
}

func (c Category) String() string { return string(c) }
