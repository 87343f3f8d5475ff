package services

import (
	"errors"

	"github.com/sony/sonyflake"
)

// IDGenerator hands out unique, roughly time-ordered message ids.
type IDGenerator interface {
	NextID() (uint64, error)
}

// NewMessageIDGenerator returns a sonyflake generator. Each instance sharing a
// database needs its own machineID.
func NewMessageIDGenerator(machineID uint16) (*sonyflake.Sonyflake, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		MachineID: func() (uint16, error) { return machineID, nil },
	})
	if sf == nil {
		return nil, errors.New("sonyflake: invalid settings")
	}
	return sf, nil
}
