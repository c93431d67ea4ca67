package sensor

import (
	"errors"
	"math"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"speed", CategorySpeed},
		{"SPEED", CategorySpeed},
		{"temperature", CategoryTemperature},
		{"temp", CategoryTemperature},
		{"radar", CategoryRadar},
		{"battery", CategoryBatteryLevel},
		{"battery_level", CategoryBatteryLevel},
		{" Battery-Level ", CategoryBatteryLevel},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if err != nil {
			t.Errorf("ParseCategory(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseCategory("lidar"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("ParseCategory(lidar) error = %v, want ErrInvalidCategory", err)
	}
}

func TestDescriptorRanges(t *testing.T) {
	tests := []struct {
		cat      Category
		min, max float64
	}{
		{CategorySpeed, 0, 320},
		{CategoryTemperature, 0, 320},
		{CategoryRadar, 0, 50},
		{CategoryBatteryLevel, 0, 100},
	}
	for _, tt := range tests {
		d, ok := Describe(tt.cat)
		if !ok {
			t.Fatalf("Describe(%v) not found", tt.cat)
		}
		if d.Min != tt.min || d.Max != tt.max {
			t.Errorf("%v range = [%v,%v], want [%v,%v]", tt.cat, d.Min, d.Max, tt.min, tt.max)
		}
	}

	if _, ok := Describe(Category(7)); ok {
		t.Error("Describe(7) should fail")
	}
}

func TestUniformSamplerStaysInRange(t *testing.T) {
	u := NewUniformSampler(42)
	for _, c := range Categories() {
		d, _ := Describe(c)
		for i := 0; i < 1000; i++ {
			if v := u.Sample(c); !d.Contains(v) {
				t.Fatalf("%v sample %v outside [%v,%v]", c, v, d.Min, d.Max)
			}
		}
	}
}

func TestUniformSamplerSeedIsDeterministic(t *testing.T) {
	a := NewUniformSampler(99)
	b := NewUniformSampler(99)
	for i := 0; i < 10; i++ {
		if a.Sample(CategorySpeed) != b.Sample(CategorySpeed) {
			t.Fatal("same seed produced different sequences")
		}
	}
}

func TestIDStringAndParse(t *testing.T) {
	id := ID{Category: CategoryRadar, Instance: 3}
	if id.String() != "RADAR:3" {
		t.Errorf("String() = %q, want RADAR:3", id.String())
	}

	parsed, err := ParseID("radar:3")
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}
	if parsed != id {
		t.Errorf("ParseID = %v, want %v", parsed, id)
	}

	for _, bad := range []string{"radar", "radar:0", "radar:x", "lidar:1"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) should fail", bad)
		}
	}
}

func TestCategoryTextRoundTrip(t *testing.T) {
	text, err := CategoryBatteryLevel.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var c Category
	if err := c.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q) failed: %v", text, err)
	}
	if c != CategoryBatteryLevel {
		t.Errorf("round trip = %v, want BATTERY_LEVEL", c)
	}
}

func TestDescriptorClamp(t *testing.T) {
	d, _ := Describe(CategoryRadar)

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"inside", 12.5, 12.5},
		{"below", -1, 0},
		{"above", 51, 50},
		{"nan", math.NaN(), 0},
		{"negative infinity", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Clamp(tt.in)
			if got != tt.want {
				t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if !d.Contains(got) {
				t.Errorf("Clamp(%v) = %v outside [%v, %v]", tt.in, got, d.Min, d.Max)
			}
		})
	}
}
