package clock

import (
	"math"
	"sync"
	"testing"
)

func TestNewTickerStartsAtZero(t *testing.T) {
	tk := NewTicker(NewSource())
	if s := tk.Stamp(); s != (Stamp{}) {
		t.Fatalf("new ticker: got %+v, want (0,0)", s)
	}
	var zero Ticker
	if s := zero.Stamp(); s != (Stamp{}) {
		t.Fatalf("zero ticker: got %+v, want (0,0)", s)
	}
}

func TestClickMonotonicallyIncreases(t *testing.T) {
	src := NewSource()
	a := NewTicker(src)
	b := NewTicker(src)
	prev := Stamp{}
	for i := 0; i < 100; i++ {
		tk := &a
		if i%3 == 0 {
			tk = &b
		}
		s := tk.Click()
		if !prev.Less(s) {
			t.Fatalf("Click %d: got %+v, want > %+v", i, s, prev)
		}
		prev = s
	}
	if !a.Less(b) && !b.Less(a) {
		t.Fatal("tickers clicked at different times should not compare equal")
	}
}

func TestClickOverflowAdvancesEpoch(t *testing.T) {
	src := NewSource()
	src.Set(Stamp{Epoch: 2, Step: math.MaxUint64 - 1})
	tk := NewTicker(src)

	s1 := tk.Click()
	if s1 != (Stamp{Epoch: 2, Step: math.MaxUint64}) {
		t.Fatalf("first click: got %+v", s1)
	}
	s2 := tk.Click()
	if s2 != (Stamp{Epoch: 3, Step: 0}) {
		t.Fatalf("overflow click: got %+v, want (3,0)", s2)
	}
	if !s1.Less(s2) {
		t.Fatal("order must survive step overflow")
	}
	s3 := tk.Click()
	if s3 != (Stamp{Epoch: 3, Step: 1}) {
		t.Fatalf("after overflow: got %+v, want (3,1)", s3)
	}
}

func TestUpdateFromTakesMax(t *testing.T) {
	src := NewSource()
	older := NewTicker(src)
	older.Click()
	newer := NewTicker(src)
	newer.Click()

	a := older
	a.UpdateFrom(newer)
	if a.Stamp() != newer.Stamp() {
		t.Fatalf("UpdateFrom(newer): got %+v, want %+v", a.Stamp(), newer.Stamp())
	}

	b := newer
	b.UpdateFrom(older)
	if b.Stamp() != newer.Stamp() {
		t.Fatalf("UpdateFrom(older) must not regress: got %+v", b.Stamp())
	}
}

func TestUpdateFromIdempotent(t *testing.T) {
	src := NewSource()
	a := NewTicker(src)
	a.Click()
	other := NewTicker(src)
	other.Click()
	other.Click()

	once := a
	once.UpdateFrom(other)
	twice := a
	twice.UpdateFrom(other)
	twice.UpdateFrom(other)
	if once.Stamp() != twice.Stamp() {
		t.Fatalf("UpdateFrom not idempotent: %+v vs %+v", once.Stamp(), twice.Stamp())
	}
}

func TestUpdateFromDoesNotTouchSource(t *testing.T) {
	src := NewSource()
	a := NewTicker(src)
	b := NewTicker(src)
	b.Click()
	before := src.Now()
	a.UpdateFrom(b)
	if src.Now() != before {
		t.Fatal("UpdateFrom must not advance the source")
	}
}

func TestComparisons(t *testing.T) {
	src := NewSource()
	a := NewTicker(src)
	a.Click()
	b := NewTicker(src)
	b.Click()

	cases := []struct {
		name string
		got  bool
		want bool
	}{
		{"a < b", a.Less(b), true},
		{"b < a", b.Less(a), false},
		{"a <= a", a.LessEq(a), true},
		{"a <= b", a.LessEq(b), true},
		{"b > a", b.Greater(a), true},
		{"a > a", a.Greater(a), false},
		{"a >= a", a.GreaterEq(a), true},
		{"a >= b", a.GreaterEq(b), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestStampCompare(t *testing.T) {
	cases := []struct {
		a, b Stamp
		want int
	}{
		{Stamp{0, 1}, Stamp{0, 2}, -1},
		{Stamp{1, 0}, Stamp{0, 99}, 1},
		{Stamp{4, 4}, Stamp{4, 4}, 0},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Fatalf("%+v.Compare(%+v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestConcurrentClicksAreUnique(t *testing.T) {
	src := NewSource()
	const workers, clicks = 8, 200
	stamps := make(chan Stamp, workers*clicks)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := NewTicker(src)
			for i := 0; i < clicks; i++ {
				stamps <- tk.Click()
			}
		}()
	}
	wg.Wait()
	close(stamps)

	seen := make(map[Stamp]bool)
	for s := range stamps {
		if seen[s] {
			t.Fatalf("duplicate stamp %+v", s)
		}
		seen[s] = true
	}
	if got := src.Now(); got != (Stamp{Step: workers * clicks}) {
		t.Fatalf("source after %d clicks: got %+v", workers*clicks, got)
	}
}

func TestDefaultSourceUsedByZeroTicker(t *testing.T) {
	var tk Ticker
	before := Default.Now()
	tk.Click()
	if !before.Less(tk.Stamp()) {
		t.Fatalf("zero ticker should click Default: before %+v, got %+v", before, tk.Stamp())
	}
	if tk.Source() != Default {
		t.Fatal("zero ticker should report Default as its source")
	}
}
