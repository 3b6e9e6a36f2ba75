package store

import "github.com/cursivelang/corec/internal/value"

// Region is a dynamic arena identified by Target; Tag is a unique
// generation (spec.md §3 Region entry).
type Region struct {
	Tag        uint64
	Target     uint64
	ScopeID    int
	Allocs     []value.Addr // allocation order, for frame truncation
	frameMarks []int
}

// NewRegion creates a fresh region entry and pushes it onto the region
// stack (spec.md §4.4 `region r { ... }`).
func (s *Sigma) NewRegion() *Region {
	s.nextRegionTag++
	s.nextRegionTarget++
	r := &Region{Tag: s.nextRegionTag, Target: s.nextRegionTarget}
	if sc := s.CurrentScope(); sc != nil {
		r.ScopeID = sc.ID
	}
	s.regionStack = append(s.regionStack, r)
	return r
}

// CurrentRegion returns the innermost active region, or nil if none is
// active (spec.md §4.4 "If none is active the compiler rejects the
// expression" — the analyzer enforces that statically; at the store level
// we simply report absence).
func (s *Sigma) CurrentRegion() *Region {
	if len(s.regionStack) == 0 {
		return nil
	}
	return s.regionStack[len(s.regionStack)-1]
}

// AllocInRegion allocates v at a fresh address tagged to r (spec.md §4.4
// `alloc v [in r]`).
func (s *Sigma) AllocInRegion(r *Region, v value.Value) value.Addr {
	addr := s.AllocAddr()
	s.TagAddr(addr, TagRegion, r.Tag)
	s.InitAddr(addr, v)
	r.Allocs = append(r.Allocs, addr)
	return addr
}

// FreeUnchecked tears a region down explicitly: every address tagged with
// its generation becomes Expired (spec.md §4.4, §8 boundary law).
func (s *Sigma) FreeUnchecked(r *Region) {
	s.ExpireTag(TagRegion, r.Tag)
	for i, cur := range s.regionStack {
		if cur == r {
			s.regionStack = append(s.regionStack[:i], s.regionStack[i+1:]...)
			break
		}
	}
}

// RegionLive reports whether r is still on the region stack (i.e. has not
// already been torn down by FreeUnchecked), so a caller that tracks region
// aliases across a RegionStmt's implicit and a nested EndRegionStmt's
// explicit teardown can avoid double-freeing.
func (s *Sigma) RegionLive(r *Region) bool {
	for _, cur := range s.regionStack {
		if cur == r {
			return true
		}
	}
	return false
}

// PushFrame records the region's current allocation index as a mark
// (spec.md §4.4 `frame [in r] { ... }`).
func (s *Sigma) PushFrame(r *Region) int {
	mark := len(r.Allocs)
	r.frameMarks = append(r.frameMarks, mark)
	return mark
}

// PopFrame truncates allocations performed since mark, expiring their
// tags, and pops the recorded mark.
func (s *Sigma) PopFrame(r *Region, mark int) {
	for _, addr := range r.Allocs[mark:] {
		if tag, ok := s.addrTags[addr]; ok {
			tag.Active = false
			s.addrTags[addr] = tag
		}
	}
	r.Allocs = r.Allocs[:mark]
	if n := len(r.frameMarks); n > 0 && r.frameMarks[n-1] == mark {
		r.frameMarks = r.frameMarks[:n-1]
	}
}

// RegionSnapshot is the observable state captured by freeze and restored
// by thaw (spec.md §4.9, §8 round-trip law Region.freeze(r).thaw() = r).
type RegionSnapshot struct {
	tag    uint64
	target uint64
	allocs []value.Addr
}

// Freeze captures r's observable allocation state.
func (s *Sigma) Freeze(r *Region) RegionSnapshot {
	allocs := make([]value.Addr, len(r.Allocs))
	copy(allocs, r.Allocs)
	return RegionSnapshot{tag: r.Tag, target: r.Target, allocs: allocs}
}

// Thaw restores r to a previously frozen snapshot of the same region
// (mismatched tags are a usage error, since a snapshot only ever
// round-trips through the same live region value).
func (s *Sigma) Thaw(r *Region, snap RegionSnapshot) {
	if r.Tag != snap.tag || r.Target != snap.target {
		panic("store: Thaw snapshot does not match region identity")
	}
	allocs := make([]value.Addr, len(snap.allocs))
	copy(allocs, snap.allocs)
	r.Allocs = allocs
}
