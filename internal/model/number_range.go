package model

import "time"

// NumberRange gives a workstation an exclusive slice of the check number
// space so that offline workstations can allocate operator-facing numbers
// without coordinating.  Current is the next number to hand out; when it
// passes End the range is exhausted and must be reassigned operationally,
// never wrapped around.
type NumberRange struct {
	WorkstationID string    // workstation_check_number_ranges.workstation_id
	Start         int64     // workstation_check_number_ranges.range_start
	End           int64     // workstation_check_number_ranges.range_end (inclusive)
	Current       int64     // workstation_check_number_ranges.current
	LastSeen      time.Time // workstation_check_number_ranges.last_seen
}
