package beacon

// Frame framing
const (
	HeaderSize  = 4 // CSP header prefix
	TrailerSize = 4 // CRC32 suffix, stripped but not verified
)

// Beacon 0 layout
const (
	TypeBeacon0   = 0
	PayloadLength = 136 // type tag + all subsystem blocks

	TypeTagSize         = 1
	PowerBlockSize      = 49
	CommsBlockSize      = 14
	OBCBlockSize        = 14
	ADCSBlockSize       = 20
	AuxSensorBlockSize  = 38
	SubsystemBlocksSize = PowerBlockSize + CommsBlockSize + OBCBlockSize + ADCSBlockSize + AuxSensorBlockSize
)

// Expected routing of a beacon frame
const (
	BeaconSource   = 1
	BeaconDest     = 10
	BeaconDestPort = 30
)

// Fixed-point temperatures are sent in tenths of a degree
const temperatureScale = 10.0
