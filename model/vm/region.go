package vm

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOverlap is returned when a region would overlap one already in the set.
var ErrOverlap = errors.New("vm: region overlaps an existing region")

// Region is a mapped virtual page range [Start, End) bound to a backing object
// at Offset.
type Region struct {
	Start  PFN
	End    PFN
	Flags  Flags
	Owner  *File
	Offset PageOffset
}

// Pages returns the number of pages covered.
func (r *Region) Pages() uint64 {
	return uint64(r.End - r.Start)
}

// Contains reports whether pfn falls inside the region.
func (r *Region) Contains(pfn PFN) bool {
	return pfn >= r.Start && pfn < r.End
}

// Overlaps reports whether [start, end) intersects the region.
func (r *Region) Overlaps(start, end PFN) bool {
	return start < r.End && r.Start < end
}

func (r *Region) String() string {
	owner := "anon"
	if r.Owner != nil && r.Owner.Name != "" {
		owner = r.Owner.Name
	}
	return fmt.Sprintf("[0x%x-0x%x) %s %s+%d", uint64(r.Start)<<PageShift, uint64(r.End)<<PageShift, r.Flags, owner, r.Offset)
}

// RegionSet holds the regions of one task, sorted by start page.
type RegionSet struct {
	regions []*Region
}

// NewRegionSet creates an empty set.
func NewRegionSet() *RegionSet {
	return &RegionSet{}
}

// Find returns the region containing pfn or nil.
func (s *RegionSet) Find(pfn PFN) *Region {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].End > pfn })
	if i < len(s.regions) && s.regions[i].Contains(pfn) {
		return s.regions[i]
	}
	return nil
}

// Insert adds a region; overlapping regions are rejected, never merged.
func (s *RegionSet) Insert(region *Region) error {
	if region.End <= region.Start {
		return fmt.Errorf("%w: empty region %v", ErrInconsistent, region)
	}
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].Start >= region.Start })
	if i > 0 && s.regions[i-1].Overlaps(region.Start, region.End) {
		return fmt.Errorf("%w: %v and %v", ErrOverlap, region, s.regions[i-1])
	}
	if i < len(s.regions) && s.regions[i].Overlaps(region.Start, region.End) {
		return fmt.Errorf("%w: %v and %v", ErrOverlap, region, s.regions[i])
	}
	s.regions = append(s.regions, nil)
	copy(s.regions[i+1:], s.regions[i:])
	s.regions[i] = region
	return nil
}

// Remove deletes every region inside [start, end) and returns them. When a
// region straddles either bound nothing is removed and partial is true.
func (s *RegionSet) Remove(start, end PFN) (removed []*Region, partial bool) {
	for _, region := range s.regions {
		if region.Overlaps(start, end) && (region.Start < start || region.End > end) {
			return nil, true
		}
	}
	kept := s.regions[:0]
	for _, region := range s.regions {
		if region.Overlaps(start, end) {
			removed = append(removed, region)
			continue
		}
		kept = append(kept, region)
	}
	s.regions = kept
	return removed, false
}

// Len returns the number of regions.
func (s *RegionSet) Len() int {
	return len(s.regions)
}

// List returns the regions in address order.
func (s *RegionSet) List() []*Region {
	out := make([]*Region, len(s.regions))
	copy(out, s.regions)
	return out
}
