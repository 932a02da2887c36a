package feed

import "testing"

func TestFilter_String(t *testing.T) {
	tests := []struct {
		filter Filter
		want   string
	}{
		{filter: NoFilter(), want: "none"},
		{filter: CategoryFilter(7), want: "category:7"},
		{filter: SearchFilter("go tips"), want: `search:"go tips"`},
	}

	for _, tt := range tests {
		if got := tt.filter.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestItem_HasAuxiliaryResource(t *testing.T) {
	if (Item{ID: 1}).HasAuxiliaryResource() {
		t.Error("item without aux id should report false")
	}
	if !(Item{ID: 1, AuxiliaryResourceID: 9}).HasAuxiliaryResource() {
		t.Error("item with aux id should report true")
	}
}
