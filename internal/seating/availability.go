package seating

// ComputeAvailableGuests returns every guest occurrence that has no assignment.
// Occurrences keep the order of the provided RSVPs, then ascending seat index.
func ComputeAvailableGuests(rsvps []RSVP, assignments []GuestAssignment) []GuestOccurrence {
	seated := make(map[OccurrenceKey]struct{}, len(assignments))
	for _, assignment := range assignments {
		seated[assignment.Key()] = struct{}{}
	}

	available := make([]GuestOccurrence, 0)
	for _, rsvp := range rsvps {
		for seatIndex := range rsvp.GuestNames {
			occurrence, ok := rsvp.Occurrence(seatIndex)
			if !ok {
				continue
			}
			if _, taken := seated[occurrence.Key]; taken {
				continue
			}
			available = append(available, occurrence)
		}
	}
	return available
}

// GroupSeatings groups assignments per table in table order. Tables without assignments
// are omitted.
func GroupSeatings(tables []Table, assignments []GuestAssignment) []TableSeating {
	byTable := make(map[string][]GuestAssignment, len(tables))
	for _, assignment := range assignments {
		byTable[assignment.TableID] = append(byTable[assignment.TableID], assignment)
	}
	groups := make([]TableSeating, 0, len(tables))
	for _, table := range tables {
		held := byTable[table.ID]
		if len(held) == 0 {
			continue
		}
		groups = append(groups, TableSeating{Table: table, Assignments: held})
	}
	return groups
}

// Summarize computes dashboard counts from full snapshots.
func Summarize(rsvps []RSVP, tables []Table, assignments []GuestAssignment) Summary {
	summary := Summary{
		RSVPCount:   len(rsvps),
		TableCount:  len(tables),
		SeatedCount: len(assignments),
	}
	for _, rsvp := range rsvps {
		summary.GuestCount += rsvp.GuestCount
	}
	for _, table := range tables {
		summary.TotalCapacity += table.Capacity
	}
	summary.AvailableCount = len(ComputeAvailableGuests(rsvps, assignments))
	return summary
}
