package importer

import (
	"strconv"
)

// Plan is the outcome of checking parsed files against each other and the
// codes already stored.
type Plan struct {
	Accepted []Record
	Rejected []Rejection
	// Updates counts accepted records whose code is already stored.
	Updates int
}

// Existing is a set of stored coupon codes.
type Existing struct {
	set *File
}

// NewExisting indexes stored coupon codes. Codes are normalized by the
// caller.
func NewExisting(codes []string) *Existing {
	f := &File{codes: make(map[string]int, len(codes))}
	for _, c := range codes {
		f.codes[c]++
	}
	f.filter = newFilter(len(f.codes))
	for c := range f.codes {
		f.filter.AddString(c)
	}
	return &Existing{set: f}
}

// Contains reports whether code is stored.
func (e *Existing) Contains(code string) bool {
	if e == nil {
		return false
	}
	return e.set.contains(code)
}

// Build checks every record of files for duplicate codes and, when
// skipExisting is set, for codes already stored. Records keep file and
// line order; parse rejections of each file come first.
func Build(files []*File, existing *Existing, skipExisting bool) *Plan {
	p := &Plan{}
	for _, f := range files {
		p.Rejected = append(p.Rejected, f.Rejected...)
	}

	for i, f := range files {
		for _, rec := range f.Records {
			code := rec.Def.CouponCode
			if where := duplicateOf(files, i, code); where != "" {
				p.Rejected = append(p.Rejected, Rejection{
					File:   rec.File,
					Line:   rec.Line,
					Code:   code,
					Reason: ReasonDuplicate,
					Detail: where,
				})
				continue
			}
			stored := existing.Contains(code)
			if stored && skipExisting {
				p.Rejected = append(p.Rejected, Rejection{
					File:   rec.File,
					Line:   rec.Line,
					Code:   code,
					Reason: ReasonExists,
				})
				continue
			}
			if stored {
				p.Updates++
			}
			p.Accepted = append(p.Accepted, rec)
		}
	}
	return p
}

// duplicateOf describes where else code occurs, or returns "" when the
// code is unique to file i.
func duplicateOf(files []*File, i int, code string) string {
	if n := files[i].codes[code]; n > 1 {
		return "appears " + strconv.Itoa(n) + " times in " + files[i].Name
	}
	for j, other := range files {
		if j != i && other.contains(code) {
			return "also in " + other.Name
		}
	}
	return ""
}
