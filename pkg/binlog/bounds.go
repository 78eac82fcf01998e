package binlog

import (
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// BoundKind says whether a bound is open, inclusive or exclusive.
type BoundKind uint8

const (
	BoundUnbounded BoundKind = iota
	BoundIncluded
	BoundExcluded
)

// Bound is one end of a timestamp interval.
type Bound struct {
	kind BoundKind
	ts   int64
}

// Unbounded imposes no constraint.
func Unbounded() Bound { return Bound{} }

// Included admits ts itself.
func Included(ts int64) Bound { return Bound{kind: BoundIncluded, ts: ts} }

// Excluded stops just short of ts.
func Excluded(ts int64) Bound { return Bound{kind: BoundExcluded, ts: ts} }

// Kind returns the bound kind.
func (b Bound) Kind() BoundKind { return b.kind }

// Timestamp returns the bounding timestamp and false for an unbounded side.
func (b Bound) Timestamp() (int64, bool) {
	return b.ts, b.kind != BoundUnbounded
}

func (b Bound) String() string {
	switch b.kind {
	case BoundIncluded:
		return "[" + strconv.FormatInt(b.ts, 10)
	case BoundExcluded:
		return "(" + strconv.FormatInt(b.ts, 10)
	default:
		return "*"
	}
}

// NameFilter restricts a range to one exact name, or to any name.
type NameFilter struct {
	name string
	set  bool
}

// AnyName matches every entry.
var AnyName = NameFilter{}

// Named matches entries whose name equals name exactly.
func Named(name string) NameFilter { return NameFilter{name: name, set: true} }

// Name returns the filtered name and whether a filter is set.
func (f NameFilter) Name() (string, bool) { return f.name, f.set }

// Matches reports whether name passes the filter.
func (f NameFilter) Matches(name string) bool { return !f.set || f.name == name }

// Query is a validated range descriptor: a timestamp interval plus an
// optional exact name. Backends translate it into their own predicate.
type Query struct {
	Start Bound
	End   Bound
	Name  NameFilter
}

// NewQuery validates the bounds. A start after the end, or equal bounds where
// either side is exclusive, fails with ErrBadRange.
func NewQuery(start, end Bound, name NameFilter) (Query, error) {
	q := Query{Start: start, End: end, Name: name}
	s, okS := start.Timestamp()
	e, okE := end.Timestamp()
	if okS && okE {
		switch {
		case s > e:
			return Query{}, errors.Wrap(ErrBadRange, fmt.Errorf("start %d is after end %d", s, e),
				"start", s, "end", e)
		case s == e && (start.kind == BoundExcluded || end.kind == BoundExcluded):
			return Query{}, errors.Wrap(ErrBadRange, fmt.Errorf("empty range %s..%s", start, end),
				"start", s, "end", e)
		}
	}
	return q, nil
}

// Match reports whether e falls inside the query.
func (q Query) Match(e Entry) bool {
	if !q.Name.Matches(e.Name) {
		return false
	}
	switch q.Start.kind {
	case BoundIncluded:
		if e.Timestamp < q.Start.ts {
			return false
		}
	case BoundExcluded:
		if e.Timestamp <= q.Start.ts {
			return false
		}
	}
	switch q.End.kind {
	case BoundIncluded:
		if e.Timestamp > q.End.ts {
			return false
		}
	case BoundExcluded:
		if e.Timestamp >= q.End.ts {
			return false
		}
	}
	return true
}

func (q Query) String() string {
	end := "*"
	switch q.End.kind {
	case BoundIncluded:
		end = strconv.FormatInt(q.End.ts, 10) + "]"
	case BoundExcluded:
		end = strconv.FormatInt(q.End.ts, 10) + ")"
	}
	name := "*"
	if n, ok := q.Name.Name(); ok {
		name = strconv.Quote(n)
	}
	return q.Start.String() + ".." + end + " name=" + name
}
