package trip

import (
	"errors"
	"strings"
)

// VehicleType is the car class a customer books.
type VehicleType string

const (
	VehicleEconomy VehicleType = "ECONOMY"
	VehiclePremium VehicleType = "PREMIUM"
	VehicleXL      VehicleType = "XL"
)

var ErrInvalidVehicleType = errors.New("vehicle type must be one of: ECONOMY, PREMIUM, XL")

// ParseVehicleType accepts any casing; an empty string means economy.
func ParseVehicleType(in string) (VehicleType, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return VehicleEconomy, nil
	}
	vt := VehicleType(strings.ToUpper(in))
	if vt.Valid() {
		return vt, nil
	}
	return "", ErrInvalidVehicleType
}

// Valid reports whether vt is one of the allowed vehicle type constants.
func (vt VehicleType) Valid() bool {
	switch vt {
	case VehicleEconomy, VehiclePremium, VehicleXL:
		return true
	default:
		return false
	}
}

// Seats is the passenger capacity advertised for the class.
func (vt VehicleType) Seats() int {
	if vt == VehicleXL {
		return 6
	}
	return 4
}

func (vt VehicleType) String() string {
	return string(vt)
}
