package optimization

import "strings"

// GridPowerOutput is the output minimized by the load kinds.
const GridPowerOutput = "grid_electric_power"

// Output names are classified by convention of the building model.
func isTemperature(output string) bool   { return strings.Contains(output, "temperature") }
func isStateOfCharge(output string) bool { return strings.Contains(output, "state_of_charge") }

// isElectricDemand excludes storage-to-zone transfers, which are internal.
func isElectricDemand(output string) bool {
	return strings.Contains(output, "electric_power") && !strings.Contains(output, "storage_to_zone")
}

func isStorageChargePower(output string) bool {
	return strings.Contains(output, "storage_charge") && strings.Contains(output, "electric_power")
}

type storageMedium int

const (
	mediumSensible storageMedium = iota + 1
	mediumBattery
)

func parseMedium(storageType string) (storageMedium, bool) {
	switch {
	case strings.Contains(storageType, "sensible"):
		return mediumSensible, true
	case strings.Contains(storageType, "battery"):
		return mediumBattery, true
	default:
		return 0, false
	}
}
