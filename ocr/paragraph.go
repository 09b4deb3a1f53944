package ocr

import (
	"image"
	"strings"
)

// Single piece of recognized text with its position on the image
type Detection struct {
	Text string          `json:"text"`
	Box  image.Rectangle `json:"box"`
}

type detectionGroupItem struct {
	text    string
	minX    float64
	maxX    float64
	minY    float64
	maxY    float64
	height  float64
	centerY float64
	group   int
}

// Merges detections (usually text lines) into paragraphs using geometric thresholds.
//
// Detections are clustered greedily: a detection joins current group when one of its horizontal edges lies inside
// group x-range widened by XThreshold*meanHeight and one of its vertical edges lies inside group y-range widened by
// YThreshold*meanHeight. Inside a group text is read row by row, left to right.
func GroupParagraphs(detections []Detection, opts ReadOptions) []string {
	items := make([]*detectionGroupItem, 0, len(detections))
	for _, d := range detections {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		box := d.Box.Canon()
		items = append(items, &detectionGroupItem{
			text:    text,
			minX:    float64(box.Min.X),
			maxX:    float64(box.Max.X),
			minY:    float64(box.Min.Y),
			maxY:    float64(box.Max.Y),
			height:  float64(box.Dy()),
			centerY: float64(box.Min.Y+box.Max.Y) / 2,
		})
	}

	groupsCount := assignGroups(items, opts)

	paragraphs := make([]string, 0, groupsCount)
	for group := 1; group <= groupsCount; group++ {
		var members []*detectionGroupItem
		for _, item := range items {
			if item.group == group {
				members = append(members, item)
			}
		}
		if len(members) > 0 {
			paragraphs = append(paragraphs, readGroup(members))
		}
	}
	return paragraphs
}

func assignGroups(items []*detectionGroupItem, opts ReadOptions) int {
	if len(items) == 0 {
		return 0
	}

	currentGroup := 1
	unassigned := len(items)
	for unassigned > 0 {
		var members []*detectionGroupItem
		for _, item := range items {
			if item.group == currentGroup {
				members = append(members, item)
			}
		}

		if len(members) == 0 {
			for _, item := range items {
				if item.group == 0 {
					item.group = currentGroup
					unassigned--
					break
				}
			}
			continue
		}

		meanHeight := meanGroupHeight(members)
		minGX, maxGX, minGY, maxGY := groupBounds(members)
		minGX -= opts.XThreshold * meanHeight
		maxGX += opts.XThreshold * meanHeight
		minGY -= opts.YThreshold * meanHeight
		maxGY += opts.YThreshold * meanHeight

		added := false
		for _, item := range items {
			if item.group != 0 {
				continue
			}
			sameHorizontalLevel := between(item.minX, minGX, maxGX) || between(item.maxX, minGX, maxGX)
			sameVerticalLevel := between(item.minY, minGY, maxGY) || between(item.maxY, minGY, maxGY)
			if sameHorizontalLevel && sameVerticalLevel {
				item.group = currentGroup
				unassigned--
				added = true
				break
			}
		}
		if !added {
			currentGroup++
		}
	}

	return currentGroup
}

func readGroup(members []*detectionGroupItem) string {
	meanHeight := meanGroupHeight(members)
	remaining := append([]*detectionGroupItem(nil), members...)

	words := make([]string, 0, len(members))
	for len(remaining) > 0 {
		highest := remaining[0].centerY
		for _, item := range remaining[1:] {
			highest = min(highest, item.centerY)
		}

		best := -1
		for i, item := range remaining {
			if item.centerY != highest && item.centerY >= highest+0.4*meanHeight {
				continue
			}
			// ties go to the later detection
			if best == -1 || item.minX <= remaining[best].minX {
				best = i
			}
		}

		words = append(words, remaining[best].text)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return strings.Join(words, " ")
}

func meanGroupHeight(members []*detectionGroupItem) float64 {
	var sum float64
	for _, item := range members {
		sum += item.height
	}
	return sum / float64(len(members))
}

func groupBounds(members []*detectionGroupItem) (minX, maxX, minY, maxY float64) {
	minX, maxX, minY, maxY = members[0].minX, members[0].maxX, members[0].minY, members[0].maxY
	for _, item := range members[1:] {
		minX = min(minX, item.minX)
		maxX = max(maxX, item.maxX)
		minY = min(minY, item.minY)
		maxY = max(maxY, item.maxY)
	}
	return
}

func between(v, low, high float64) bool {
	return low <= v && v <= high
}
