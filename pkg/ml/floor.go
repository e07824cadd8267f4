package ml

import "strconv"

// HighFloorBucket is the category grouping all floors above 10. The models
// treat floor as a bounded categorical, not a continuous number; floors this
// high are too rare to keep as individual levels.
const HighFloorBucket = "higher_10"

// FloorBucket maps a raw floor number onto the categorical vocabulary the
// models were trained on: the literal value for floors 0-10, HighFloorBucket
// above that.
func FloorBucket(floor int) string {
	if floor > 10 {
		return HighFloorBucket
	}
	return strconv.Itoa(floor)
}
