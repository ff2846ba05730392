package session

import "fmt"

// Phase is the test lifecycle stage.
type Phase int

const (
	Idle Phase = iota
	Positioning
	Stimulus
	Results
)

var phaseNames = [...]string{
	Idle:        "idle",
	Positioning: "positioning",
	Stimulus:    "stimulus",
	Results:     "results",
}

func (p Phase) String() string {
	if p < Idle || p > Results {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Orientation is the display orientation presentation should lock to.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// MarshalText encodes the orientation by name.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an orientation name.
func (o *Orientation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "portrait":
		*o = Portrait
	case "landscape":
		*o = Landscape
	default:
		return fmt.Errorf("unknown orientation %q", text)
	}
	return nil
}

// orientationFor returns the orientation required while in phase p.
func orientationFor(p Phase) Orientation {
	if p == Positioning || p == Stimulus {
		return Landscape
	}
	return Portrait
}
