package provider

import (
	"testing"

	"chartpi/internal/domain"
)

func series(times ...int64) []domain.Bar {
	out := make([]domain.Bar, len(times))
	for i, t := range times {
		out[i] = domain.Bar{Time: t, Open: 1, High: 1, Low: 1, Close: float64(t)}
	}
	return out
}

func TestMergeBarReplacesLast(t *testing.T) {
	hist := series(60, 120, 180)
	got := MergeBar(hist, domain.Bar{Time: 180, Close: 99})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[2].Close != 99 {
		t.Errorf("last Close = %v, want 99", got[2].Close)
	}
	if hist[2].Close != 180 {
		t.Errorf("input mutated: hist[2].Close = %v, want 180", hist[2].Close)
	}
}

func TestMergeBarAppends(t *testing.T) {
	got := MergeBar(series(60, 120), domain.Bar{Time: 180, Close: 7})
	if len(got) != 3 || got[2].Time != 180 {
		t.Errorf("MergeBar append = %v, want last time 180", got)
	}

	got = MergeBar(nil, domain.Bar{Time: 60})
	if len(got) != 1 {
		t.Errorf("MergeBar into empty history: len = %d, want 1", len(got))
	}
}

func TestMergeBarDropsOlder(t *testing.T) {
	hist := series(60, 120, 180)
	got := MergeBar(hist, domain.Bar{Time: 120, Close: 5})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[1].Close != 120 {
		t.Errorf("older bar should be discarded, got[1].Close = %v", got[1].Close)
	}
}

func TestMergeBarIdempotent(t *testing.T) {
	hist := series(60, 120)
	bar := domain.Bar{Time: 180, Open: 1, High: 3, Low: 1, Close: 2}
	once := MergeBar(hist, bar)
	twice := MergeBar(once, bar)
	if len(twice) != 3 {
		t.Fatalf("len = %d, want 3", len(twice))
	}
	count := 0
	for _, b := range twice {
		if b.Time == 180 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("bars at T = %d, want 1", count)
	}

	latest := bar
	latest.Close = 2.5
	got := MergeBar(twice, latest)
	if got[len(got)-1].Close != 2.5 {
		t.Errorf("latest values not kept: Close = %v", got[len(got)-1].Close)
	}
}

func TestMergeBarCapsHistory(t *testing.T) {
	times := make([]int64, MaxHistory)
	for i := range times {
		times[i] = int64(i+1) * 60
	}
	hist := series(times...)
	got := MergeBar(hist, domain.Bar{Time: int64(MaxHistory+1) * 60})
	if len(got) != MaxHistory {
		t.Fatalf("len = %d, want %d", len(got), MaxHistory)
	}
	if got[0].Time != 120 {
		t.Errorf("oldest Time = %d, want 120", got[0].Time)
	}
	if got[len(got)-1].Time != int64(MaxHistory+1)*60 {
		t.Errorf("newest Time = %d, want %d", got[len(got)-1].Time, int64(MaxHistory+1)*60)
	}
}

func TestTrimHistory(t *testing.T) {
	times := make([]int64, MaxHistory+20)
	for i := range times {
		times[i] = int64(i)
	}
	got := TrimHistory(series(times...))
	if len(got) != MaxHistory {
		t.Fatalf("len = %d, want %d", len(got), MaxHistory)
	}
	if got[0].Time != 20 {
		t.Errorf("first Time = %d, want 20", got[0].Time)
	}
}
