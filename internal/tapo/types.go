package tapo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Child device models that report temperature and humidity.
const (
	ModelT310 = "T310"
	ModelT315 = "T315"
)

// Nickname is a device name. The hub sends it base64-encoded; values that
// do not decode are kept verbatim.
type Nickname string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nickname) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		*n = Nickname(decoded)
		return nil
	}
	*n = Nickname(raw)
	return nil
}

// ChildDevice is one entry of get_child_device_list. Fields that only
// sensors carry are zero for other device types.
type ChildDevice struct {
	DeviceID           string   `json:"device_id"`
	Model              string   `json:"model"`
	Type               string   `json:"type"`
	Nickname           Nickname `json:"nickname"`
	HardwareVersion    string   `json:"hw_ver"`
	FirmwareVersion    string   `json:"fw_ver"`
	Status             string   `json:"status"`
	AtLowBattery       bool     `json:"at_low_battery"`
	CurrentTemperature float64  `json:"current_temperature"`
	CurrentHumidity    int      `json:"current_humidity"`
	TempUnit           string   `json:"temp_unit"`
}

// IsTemperatureSensor reports whether the device is a T310 or T315.
func (d ChildDevice) IsTemperatureSensor() bool {
	switch d.Model {
	case ModelT310, ModelT315:
		return true
	}
	return false
}

// DeviceInfo is the hub's own get_device_info result.
type DeviceInfo struct {
	DeviceID        string   `json:"device_id"`
	Type            string   `json:"type"`
	Model           string   `json:"model"`
	Nickname        Nickname `json:"nickname"`
	FirmwareVersion string   `json:"fw_ver"`
	HardwareVersion string   `json:"hw_ver"`
	IP              string   `json:"ip"`
	MAC             string   `json:"mac"`
}

// APIError is a non-zero error_code in a hub response.
type APIError struct {
	Method string
	Code   int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: hub returned error code %d", e.Method, e.Code)
}

// codeSessionTimeout is returned once the hub has dropped our session.
const codeSessionTimeout = 9999

type request struct {
	Method          string `json:"method"`
	Params          any    `json:"params,omitempty"`
	RequestTimeMils int64  `json:"requestTimeMils"`
	TerminalUUID    string `json:"terminalUUID"`
}

type response struct {
	ErrorCode int             `json:"error_code"`
	Result    json.RawMessage `json:"result"`
}

type childListParams struct {
	StartIndex int `json:"start_index"`
}

type childListResult struct {
	Devices    []ChildDevice `json:"child_device_list"`
	StartIndex int           `json:"start_index"`
	Sum        int           `json:"sum"`
}
