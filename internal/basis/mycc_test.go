package basis

import (
	"reflect"
	"testing"
)

func TestInterleavePlanes(t *testing.T) {
	got := interleavePlanes([3]int{5, 2, 2})
	want := []planeSource{
		{0, 0}, {1, 0}, {2, 0},
		{0, 1}, {1, 1}, {2, 1},
		{0, 2}, {0, 3}, {0, 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("interleavePlanes(5,2,2) = %+v, want %+v", got, want)
	}
}

func TestInterleavePlanesEqual(t *testing.T) {
	got := interleavePlanes([3]int{3, 3, 3})
	if len(got) != 9 {
		t.Fatalf("len = %d, want 9", len(got))
	}
	for i, src := range got {
		wantChannel := i % 3
		if src.channel != wantChannel {
			t.Errorf("order[%d].channel = %d, want %d", i, src.channel, wantChannel)
		}
	}
}
