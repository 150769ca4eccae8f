package nobo

// DeviceCategory groups device models by the kind of appliance they control.
type DeviceCategory string

const (
	CategoryThermostatHeater DeviceCategory = "THERMOSTAT_HEATER"
	CategoryThermostatFloor  DeviceCategory = "THERMOSTAT_FLOOR"
	CategorySwitch           DeviceCategory = "SWITCH"
	CategorySwitchOutlet     DeviceCategory = "SWITCH_OUTLET"
	CategoryThermostatRoom   DeviceCategory = "THERMOSTAT_ROOM"
	CategoryControlPanel     DeviceCategory = "CONTROL_PANEL"
)

// DeviceModel describes a component type, identified by the first three
// characters of its serial number.
type DeviceModel struct {
	ID                   string
	Category             DeviceCategory
	Name                 string
	SupportsComfort      bool
	SupportsEco          bool
	RequiresControlPanel bool
	HasTemperatureSensor bool
}

var deviceModels = map[string]DeviceModel{
	"120": {ID: "120", Category: CategorySwitch, Name: "RS 700"},
	"121": {ID: "121", Category: CategorySwitch, Name: "RSX 700"},
	"130": {ID: "130", Category: CategorySwitchOutlet, Name: "RCE 700"},
	"160": {ID: "160", Category: CategoryThermostatHeater, Name: "R80 RDC 700"},
	"165": {ID: "165", Category: CategoryThermostatHeater, Name: "R80 RDC 700 LST (GB)"},
	"168": {ID: "168", Category: CategoryThermostatHeater, Name: "NCU-2R", SupportsComfort: true, SupportsEco: true},
	"169": {ID: "169", Category: CategoryThermostatHeater, Name: "DCU-2R", SupportsComfort: true, SupportsEco: true},
	"170": {ID: "170", Category: CategoryThermostatHeater, Name: "Serie 18, ewt touch", SupportsComfort: true, SupportsEco: true},
	"180": {ID: "180", Category: CategoryThermostatHeater, Name: "2NC9 700", SupportsEco: true},
	"182": {ID: "182", Category: CategoryThermostatHeater, Name: "R80 RSC 700 (5-24)", SupportsEco: true},
	"183": {ID: "183", Category: CategoryThermostatHeater, Name: "R80 RSC 700 (5-30)", SupportsEco: true},
	"184": {ID: "184", Category: CategoryThermostatHeater, Name: "NCU-1R", SupportsEco: true},
	"186": {ID: "186", Category: CategoryThermostatHeater, Name: "DCU-1R", SupportsEco: true},
	"190": {ID: "190", Category: CategoryThermostatHeater, Name: "Safir", SupportsComfort: true, SupportsEco: true, RequiresControlPanel: true},
	"192": {ID: "192", Category: CategoryThermostatHeater, Name: "R80 TXF 700", SupportsComfort: true, SupportsEco: true, RequiresControlPanel: true},
	"194": {ID: "194", Category: CategoryThermostatHeater, Name: "R80 RXC 700", SupportsComfort: true, SupportsEco: true},
	"198": {ID: "198", Category: CategoryThermostatHeater, Name: "NCU-ER", SupportsComfort: true, SupportsEco: true},
	"199": {ID: "199", Category: CategoryThermostatHeater, Name: "DCU-ER", SupportsComfort: true, SupportsEco: true},
	"200": {ID: "200", Category: CategoryThermostatFloor, Name: "TRB 36 700"},
	"210": {ID: "210", Category: CategoryThermostatFloor, Name: "NTB-2R", SupportsComfort: true, SupportsEco: true},
	"220": {ID: "220", Category: CategoryThermostatFloor, Name: "TR36", SupportsEco: true},
	"230": {ID: "230", Category: CategoryThermostatRoom, Name: "TCU 700"},
	"231": {ID: "231", Category: CategoryThermostatRoom, Name: "THB 700"},
	"232": {ID: "232", Category: CategoryThermostatRoom, Name: "TXB 700"},
	"234": {ID: "234", Category: CategoryControlPanel, Name: "SW4", HasTemperatureSensor: true},
}

// LookupDeviceModel returns the model for a 3-character serial prefix.
func LookupDeviceModel(prefix string) (DeviceModel, bool) {
	m, ok := deviceModels[prefix]
	return m, ok
}
