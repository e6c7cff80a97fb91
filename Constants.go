package modbus

// Mode is the modbus framing mode type.
type Mode byte

// The available modbus framing modes.
const (
	ModeTCP Mode = iota
	ModeRTU
	ModeASCII
)

// ModeNames maps mode name strings by their Mode.
var ModeNames = map[Mode]string{
	ModeTCP:   "TCP",
	ModeRTU:   "RTU",
	ModeASCII: "ASCII",
}

// DefaultPort is the default port number for Modbus TCP.
const DefaultPort = 502

// MaxRTUSize, MaxASCIISize and MaxTCPSize define the maximum allowable number
// of bytes in a single Modbus packet.
const (
	MaxRTUSize   = 256
	MaxASCIISize = 513
	MaxTCPSize   = 260
)

// FunctionCode is the modbus function code type.
type FunctionCode byte

// Modbus Function Codes
const (
	FunctionReadCoils              FunctionCode = 0x01
	FunctionReadDiscreteInputs     FunctionCode = 0x02
	FunctionReadHoldingRegisters   FunctionCode = 0x03
	FunctionReadInputRegisters     FunctionCode = 0x04
	FunctionWriteSingleCoil        FunctionCode = 0x05
	FunctionWriteSingleRegister    FunctionCode = 0x06
	FunctionWriteMultipleCoils     FunctionCode = 0x0F
	FunctionWriteMultipleRegisters FunctionCode = 0x10
	FunctionMaskWriteRegister      FunctionCode = 0x16
)

// exceptionFlag is set on the function code of an exception response.
const exceptionFlag FunctionCode = 0x80

// FunctionNames maps function name strings by their FunctionCode.
var FunctionNames = map[FunctionCode]string{
	FunctionReadCoils:              "ReadCoils",
	FunctionReadDiscreteInputs:     "ReadDiscreteInputs",
	FunctionReadHoldingRegisters:   "ReadHoldingRegisters",
	FunctionReadInputRegisters:     "ReadInputRegisters",
	FunctionWriteSingleCoil:        "WriteSingleCoil",
	FunctionWriteSingleRegister:    "WriteSingleRegister",
	FunctionWriteMultipleCoils:     "WriteMultipleCoils",
	FunctionWriteMultipleRegisters: "WriteMultipleRegisters",
	FunctionMaskWriteRegister:      "MaskWriteRegister",
}

// FunctionCodes maps FunctionCodes by their FunctionName, i.e. the inverse of
// the FunctionNames map.
var FunctionCodes = map[string]FunctionCode{}

func init() {
	// Initialize FunctionCodes map as the inverse of the FunctionNames map
	for b, s := range FunctionNames {
		FunctionCodes[s] = b
	}
}

// IsReadFunction returns true if code is one of the modbus read function
// codes.
func IsReadFunction(code FunctionCode) bool {
	return code >= FunctionReadCoils && code <= FunctionReadInputRegisters
}

// IsWriteFunction returns true if code is one of the modbus write function
// codes.
func IsWriteFunction(code FunctionCode) bool {
	switch code {
	case FunctionWriteSingleCoil, FunctionWriteSingleRegister,
		FunctionWriteMultipleCoils, FunctionWriteMultipleRegisters,
		FunctionMaskWriteRegister:
		return true
	}
	return false
}
