package pb

import "fmt"

// Status is the StatusCode enum carried in HopMessage.status and
// StopMessage.status. Values match the wire enum of the relay/0.2.0
// protocol family.
type Status int32

const (
	Status_OK                      Status = 100
	Status_RESERVATION_REFUSED     Status = 200
	Status_RESOURCE_LIMIT_EXCEEDED Status = 201
	Status_PERMISSION_DENIED       Status = 202
	Status_CONNECTION_FAILED       Status = 203
	Status_NO_RESERVATION          Status = 204
	Status_MALFORMED_MESSAGE       Status = 400
	Status_UNEXPECTED_MESSAGE      Status = 401
)

var Status_name = map[Status]string{
	Status_OK:                      "OK",
	Status_RESERVATION_REFUSED:     "RESERVATION_REFUSED",
	Status_RESOURCE_LIMIT_EXCEEDED: "RESOURCE_LIMIT_EXCEEDED",
	Status_PERMISSION_DENIED:       "PERMISSION_DENIED",
	Status_CONNECTION_FAILED:       "CONNECTION_FAILED",
	Status_NO_RESERVATION:          "NO_RESERVATION",
	Status_MALFORMED_MESSAGE:       "MALFORMED_MESSAGE",
	Status_UNEXPECTED_MESSAGE:      "UNEXPECTED_MESSAGE",
}

func (s Status) String() string {
	if name, ok := Status_name[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Enum returns a pointer suitable for the optional-field slot a wire
// message stores its status in.
func (s Status) Enum() *Status {
	return &s
}

// HopType is the HopMessage.type enum.
type HopType int32

const (
	HopMessage_RESERVE HopType = 0
	HopMessage_CONNECT HopType = 1
	HopMessage_STATUS  HopType = 2
)

var hopTypeName = map[HopType]string{
	HopMessage_RESERVE: "RESERVE",
	HopMessage_CONNECT: "CONNECT",
	HopMessage_STATUS:  "STATUS",
}

func (t HopType) String() string {
	if name, ok := hopTypeName[t]; ok {
		return name
	}
	return fmt.Sprintf("HopType(%d)", int32(t))
}

func (t HopType) Enum() *HopType {
	return &t
}

// StopType is the StopMessage.type enum.
type StopType int32

const (
	StopMessage_CONNECT StopType = 0
	StopMessage_STATUS  StopType = 1
)

var stopTypeName = map[StopType]string{
	StopMessage_CONNECT: "CONNECT",
	StopMessage_STATUS:  "STATUS",
}

func (t StopType) String() string {
	if name, ok := stopTypeName[t]; ok {
		return name
	}
	return fmt.Sprintf("StopType(%d)", int32(t))
}

func (t StopType) Enum() *StopType {
	return &t
}
