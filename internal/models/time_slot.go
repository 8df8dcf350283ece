package models

// TimeSlot is one numbered lesson period of the daily calendar.
type TimeSlot struct {
	Number int    `json:"slot_number"`
	Start  string `json:"start"`
	End    string `json:"end"`
}
