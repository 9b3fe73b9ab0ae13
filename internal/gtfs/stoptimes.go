package gtfs

import "sort"

// TripStopTimes is the ordered stop sequence of one trip.
type TripStopTimes struct {
	TripID    string
	StopTimes []StopTime
}

// GroupByTrip groups stop times by trip, keeping only trips accepted by keep
// (nil keeps all). Trips come back in lexical trip_id order and each group is
// stable-sorted by stop_sequence; input order is never relied upon and the
// input slice is left untouched.
func GroupByTrip(stopTimes []StopTime, keep func(tripID string) bool) []TripStopTimes {
	groups := make(map[string][]StopTime)
	for _, st := range stopTimes {
		if keep != nil && !keep(st.TripID) {
			continue
		}
		groups[st.TripID] = append(groups[st.TripID], st)
	}

	out := make([]TripStopTimes, 0, len(groups))
	for id, sts := range groups {
		sort.SliceStable(sts, func(i, j int) bool { return sts[i].StopSequence < sts[j].StopSequence })
		out = append(out, TripStopTimes{TripID: id, StopTimes: sts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripID < out[j].TripID })
	return out
}
