package sensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidCategory is returned when a category name or value is unknown.
var ErrInvalidCategory = errors.New("invalid sensor category")

// Category selects the sensor kind and its ECU table partition.
type Category uint8

const (
	// CategorySpeed measures vehicle speed.
	CategorySpeed Category = 0

	// CategoryTemperature measures engine temperature.
	CategoryTemperature Category = 1

	// CategoryRadar measures distance to the closest obstacle.
	CategoryRadar Category = 2

	// CategoryBatteryLevel measures the remaining battery charge.
	CategoryBatteryLevel Category = 3
)

// CategoryCount is the number of sensor categories.
const CategoryCount = 4

// Categories returns all categories in table order.
func Categories() []Category {
	return []Category{CategorySpeed, CategoryTemperature, CategoryRadar, CategoryBatteryLevel}
}

// Valid returns true for a known category.
func (c Category) Valid() bool {
	return c < CategoryCount
}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySpeed:
		return "SPEED"
	case CategoryTemperature:
		return "TEMPERATURE"
	case CategoryRadar:
		return "RADAR"
	case CategoryBatteryLevel:
		return "BATTERY_LEVEL"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name. Matching is case-insensitive and
// accepts a few short forms ("temp", "battery").
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "speed":
		return CategorySpeed, nil
	case "temperature", "temp":
		return CategoryTemperature, nil
	case "radar":
		return CategoryRadar, nil
	case "battery_level", "battery-level", "batterylevel", "battery":
		return CategoryBatteryLevel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, uint8(c))
	}
	return []byte(strings.ToLower(c.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Descriptor holds the per-category behavior of a sensor.
type Descriptor struct {
	// Min is the lowest value the sensor can report.
	Min float64

	// Max is the highest value the sensor can report.
	Max float64

	// Label is the human-readable sensor type.
	Label string

	// Unit is the unit of the reported value.
	Unit string
}

var descriptors = [CategoryCount]Descriptor{
	CategorySpeed:        {Min: 0, Max: 320, Label: "Speed Sensor", Unit: "km/h"},
	CategoryTemperature:  {Min: 0, Max: 320, Label: "Temperature Sensor", Unit: "°C"},
	CategoryRadar:        {Min: 0, Max: 50, Label: "Radar Sensor", Unit: "m"},
	CategoryBatteryLevel: {Min: 0, Max: 100, Label: "Battery Level Sensor", Unit: "%"},
}

// Describe returns the descriptor for a category.
// Unknown categories return a zero Descriptor and false.
func Describe(c Category) (Descriptor, bool) {
	if !c.Valid() {
		return Descriptor{}, false
	}
	return descriptors[c], true
}

// Clamp limits v to the descriptor range. NaN maps to Min.
func (d Descriptor) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return d.Min
	}
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Contains returns true if v lies within the descriptor range.
func (d Descriptor) Contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// ID identifies a sensor instance.
type ID struct {
	Category Category
	Instance uint32
}

// String returns the ID as "CATEGORY:instance".
func (id ID) String() string {
	return fmt.Sprintf("%s:%d", id.Category, id.Instance)
}

// ParseID parses an ID in "category:instance" form.
func ParseID(s string) (ID, error) {
	name, num, ok := strings.Cut(s, ":")
	if !ok {
		return ID{}, fmt.Errorf("invalid sensor id %q: expected category:instance", s)
	}
	cat, err := ParseCategory(name)
	if err != nil {
		return ID{}, err
	}
	inst, err := strconv.ParseUint(num, 10, 32)
	if err != nil || inst == 0 {
		return ID{}, fmt.Errorf("invalid sensor id %q: bad instance number", s)
	}
	return ID{Category: cat, Instance: uint32(inst)}, nil
}
