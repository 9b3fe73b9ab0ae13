package indicators

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"gtfs-segments/internal/gtfs"
)

// SegmentStat is the condensed view of a record used in rankings.
type SegmentStat struct {
	ID              string   `json:"id"`
	OriginName      string   `json:"originName"`
	DestinationName string   `json:"destinationName"`
	Passages        int      `json:"passages"`
	MeanSpeedKmh    Optional `json:"meanSpeedKmh"`
	DistanceKm      Optional `json:"distanceKm"`
}

// Summary describes a whole indicator table. Averages over speeds ignore
// segments without a numeric speed; they are NaN when nothing is left.
type Summary struct {
	Date           string        `json:"date"`
	Mode           string        `json:"mode"`
	Segments       int           `json:"segments"`
	ActiveSegments int           `json:"activeSegments"`
	TotalPassages  int           `json:"totalPassages"`
	MeanPassages   Optional      `json:"meanPassages"`
	MedianPassages Optional      `json:"medianPassages"`
	MeanDistanceKm Optional      `json:"meanDistanceKm"`
	MeanSpeedKmh   Optional      `json:"meanSpeedKmh"`
	MedianSpeedKmh Optional      `json:"medianSpeedKmh"`
	Busiest        []SegmentStat `json:"busiest"`
	Fastest        []SegmentStat `json:"fastest"`
}

// Summarize ranks the topN busiest segments and the topN fastest among those
// with at least minPassages passages.
func Summarize(t *Table, topN, minPassages int) Summary {
	s := Summary{
		Date:     t.Date,
		Mode:     gtfs.ModeName(t.RouteType),
		Segments: len(t.Records),
		Busiest:  []SegmentStat{},
		Fastest:  []SegmentStat{},
	}

	var passages, distances, speeds []float64
	var activeRecs []Record
	for _, r := range t.Records {
		if r.Passages == 0 {
			continue
		}
		activeRecs = append(activeRecs, r)
		s.TotalPassages += r.Passages
		passages = append(passages, float64(r.Passages))
		if !math.IsNaN(r.DistanceKm) {
			distances = append(distances, r.DistanceKm)
		}
		if r.MeanSpeed.Valid && !math.IsNaN(r.MeanSpeed.Value) {
			speeds = append(speeds, r.MeanSpeed.Value)
		}
	}
	s.ActiveSegments = len(activeRecs)
	if len(activeRecs) == 0 {
		return s
	}

	s.MeanPassages = Some(stat.Mean(passages, nil))
	s.MedianPassages = Some(median(passages))
	s.MeanDistanceKm = Some(math.NaN())
	if len(distances) > 0 {
		s.MeanDistanceKm = Some(stat.Mean(distances, nil))
	}
	if len(speeds) > 0 {
		s.MeanSpeedKmh = Some(stat.Mean(speeds, nil))
		s.MedianSpeedKmh = Some(median(speeds))
	} else {
		s.MeanSpeedKmh = Some(math.NaN())
		s.MedianSpeedKmh = Some(math.NaN())
	}

	// records are already ordered by passages
	for i := 0; i < len(activeRecs) && i < topN; i++ {
		s.Busiest = append(s.Busiest, statOf(activeRecs[i]))
	}

	var fast []Record
	for _, r := range activeRecs {
		if r.Passages >= minPassages && r.MeanSpeed.Valid && !math.IsNaN(r.MeanSpeed.Value) {
			fast = append(fast, r)
		}
	}
	sort.SliceStable(fast, func(i, j int) bool { return fast[i].MeanSpeed.Value > fast[j].MeanSpeed.Value })
	for i := 0; i < len(fast) && i < topN; i++ {
		s.Fastest = append(s.Fastest, statOf(fast[i]))
	}
	return s
}

func statOf(r Record) SegmentStat {
	return SegmentStat{
		ID:              r.Segment.ID,
		OriginName:      r.Segment.OriginName,
		DestinationName: r.Segment.DestinationName,
		Passages:        r.Passages,
		MeanSpeedKmh:    r.MeanSpeed,
		DistanceKm:      Some(r.DistanceKm),
	}
}

// median of values; values is sorted in place.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// WriteText prints the summary as a human readable report.
func (s Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Segment flows - %s - %s\n", s.Mode, s.Date)
	fmt.Fprintf(tw, "Segments:\t%d\n", s.Segments)
	fmt.Fprintf(tw, "Segments with passages:\t%d\n", s.ActiveSegments)
	fmt.Fprintf(tw, "Total passages:\t%d\n", s.TotalPassages)
	if s.ActiveSegments > 0 {
		fmt.Fprintf(tw, "Mean passages per active segment:\t%.1f\n", s.MeanPassages.Value)
		fmt.Fprintf(tw, "Median passages:\t%.0f\n", s.MedianPassages.Value)
		fmt.Fprintf(tw, "Mean distance:\t%.2f km\n", s.MeanDistanceKm.Value)
		fmt.Fprintf(tw, "Mean speed:\t%.1f km/h\n", s.MeanSpeedKmh.Value)
		fmt.Fprintf(tw, "Median speed:\t%.1f km/h\n", s.MedianSpeedKmh.Value)
	}
	writeRanking(tw, "Busiest segments", s.Busiest)
	writeRanking(tw, "Fastest segments", s.Fastest)
	return tw.Flush()
}

func writeRanking(tw *tabwriter.Writer, title string, stats []SegmentStat) {
	if len(stats) == 0 {
		return
	}
	fmt.Fprintf(tw, "\n%s\n", title)
	fmt.Fprintln(tw, "id\tfrom\tto\tpassages\tspeed km/h\tdistance km")
	for _, st := range stats {
		speed := "NaN"
		if st.MeanSpeedKmh.Valid && !math.IsNaN(st.MeanSpeedKmh.Value) {
			speed = fmt.Sprintf("%.1f", st.MeanSpeedKmh.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2f\n", st.ID, st.OriginName, st.DestinationName, st.Passages, speed, st.DistanceKm.Value)
	}
}
