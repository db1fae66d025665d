package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is the sale window currently accepting claims. The numeric values are
// the ones operators pass to the admin phase setter.
type Phase uint8

const (
	PhaseClosed Phase = 0
	PhaseEarly  Phase = 1
	PhaseOpen   Phase = 2
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseEarly:
		return "early"
	case PhaseOpen:
		return "open"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// IsValid reports whether p is one of the three known phases.
func (p Phase) IsValid() bool {
	return p <= PhaseOpen
}

// ParsePhase accepts the canonical names, the presale/public aliases and the
// numeric form.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closed":
		return PhaseClosed, nil
	case "early", "presale":
		return PhaseEarly, nil
	case "open", "public":
		return PhaseOpen, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || !Phase(n).IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return Phase(n), nil
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhase, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts anything ParsePhase does.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
