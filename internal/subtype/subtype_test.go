package subtype

import (
	"testing"

	"github.com/nestlingapp/nestling/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestIDRoundTrip(t *testing.T) {
	for _, id := range Identifiers() {
		category, detail, err := Parse(id)
		if err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
		got, err := ID(category, detail)
		if err != nil {
			t.Fatalf("id for (%q, %q): %v", category, detail, err)
		}
		if got != id {
			t.Errorf("round trip %q = %q", id, got)
		}
	}
}

func TestIdentifierCount(t *testing.T) {
	if got := len(Identifiers()); got != 9 {
		t.Errorf("identifier count = %d, want 9", got)
	}
}

func TestParseUnknown(t *testing.T) {
	if _, _, err := Parse("feeding_snack"); err == nil {
		t.Error("expected error for unknown identifier, got nil")
	}
}

func TestIDUnknownDetail(t *testing.T) {
	if _, err := ID(model.CategoryDiaper, "dry"); err == nil {
		t.Error("expected error for unknown detail, got nil")
	}
	if _, err := ID(model.CategorySleep, "deep"); err == nil {
		t.Error("expected error for sleep detail, got nil")
	}
}

func TestNoteRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		meta Metadata
	}{
		{"empty", Metadata{}},
		{"volume only", Metadata{VolumeML: f64(120)}},
		{"place only", Metadata{Place: "Home"}},
		{"coordinates", Metadata{Latitude: f64(60.1699), Longitude: f64(24.9385)}},
		{"everything", Metadata{VolumeML: f64(90.5), Place: "Grandma's", Latitude: f64(-33.868820), Longitude: f64(151.209290)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeNote(EncodeNote(tc.meta))
			if !metaEqual(got, tc.meta) {
				t.Errorf("decode(encode(%+v)) = %+v", tc.meta, got)
			}
		})
	}
}

func TestEncodeNoteDeterministic(t *testing.T) {
	m := Metadata{VolumeML: f64(120), Place: "Home", Latitude: f64(60.1699), Longitude: f64(24.9385)}
	want := "volume=120;place=Home;lat=60.169900;lon=24.938500"
	if got := EncodeNote(m); got != want {
		t.Errorf("encode = %q, want %q", got, want)
	}
}

func TestDecodeNoteDropsMalformedPairs(t *testing.T) {
	m := DecodeNote("volume=abc;place=Park;;lat;lon=;junk=1;=5")
	if m.VolumeML != nil {
		t.Error("malformed volume should be dropped")
	}
	if m.Place != "Park" {
		t.Errorf("place = %q, want %q", m.Place, "Park")
	}
	if m.Latitude != nil || m.Longitude != nil {
		t.Error("malformed coordinates should be dropped")
	}
}

func TestEncodeNoteSanitizesPlace(t *testing.T) {
	m := DecodeNote(EncodeNote(Metadata{Place: "cafe;corner=west", VolumeML: f64(60)}))
	if m.VolumeML == nil || *m.VolumeML != 60 {
		t.Error("volume lost when place contains separators")
	}
	if m.Place != "cafe corner west" {
		t.Errorf("place = %q, want separators replaced", m.Place)
	}
}

func metaEqual(a, b Metadata) bool {
	return a.Place == b.Place &&
		ptrEqual(a.VolumeML, b.VolumeML) &&
		ptrEqual(a.Latitude, b.Latitude) &&
		ptrEqual(a.Longitude, b.Longitude)
}

func ptrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
